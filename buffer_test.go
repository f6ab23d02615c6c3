package repeater

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedBufferZeroCapacity(t *testing.T) {
	b, err := NewFixedBuffer[int](0)
	require.NoError(t, err)
	assert.True(t, b.Full())
	assert.True(t, b.Empty())
	assert.ErrorIs(t, b.Add(1), ErrBufferFull)
}

func TestFixedBufferNegativeCapacityRejected(t *testing.T) {
	_, err := NewFixedBuffer[int](-1)
	require.Error(t, err)
	var capErr *InvalidCapacityError
	assert.ErrorAs(t, err, &capErr)
	assert.Equal(t, DisciplineFixed, capErr.Discipline)
}

func TestFixedBufferFillAndDrain(t *testing.T) {
	b, err := NewFixedBuffer[int](3)
	require.NoError(t, err)

	for _, v := range []int{1, 2, 3} {
		require.NoError(t, b.Add(v))
	}
	assert.True(t, b.Full())
	assert.ErrorIs(t, b.Add(4), ErrBufferFull)

	for _, want := range []int{1, 2, 3} {
		v, ok := b.Remove()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
	assert.True(t, b.Empty())
	_, ok := b.Remove()
	assert.False(t, ok)
}

func TestSlidingBufferOverfill(t *testing.T) {
	b, err := NewSlidingBuffer[int](3)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.NoError(t, b.Add(i))
		assert.False(t, b.Full())
	}

	var got []int
	for {
		v, ok := b.Remove()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{97, 98, 99}, got)
}

func TestDroppingBufferOverfill(t *testing.T) {
	b, err := NewDroppingBuffer[int](3)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.NoError(t, b.Add(i))
		assert.False(t, b.Full())
	}

	var got []int
	for {
		v, ok := b.Remove()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestSlidingDroppingRejectZeroCapacity(t *testing.T) {
	_, err := NewSlidingBuffer[int](0)
	require.Error(t, err)

	_, err = NewDroppingBuffer[int](0)
	require.Error(t, err)
}
