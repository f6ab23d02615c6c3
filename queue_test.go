package repeater

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaiterQueueFIFO(t *testing.T) {
	var q waiterQueue[int]
	for _, v := range []int{1, 2, 3} {
		ok := q.enqueue(v)
		require.True(t, ok)
	}
	assert.Equal(t, 3, q.len())

	for _, want := range []int{1, 2, 3} {
		v, ok := q.dequeue()
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
	_, ok := q.dequeue()
	assert.False(t, ok)
}

func TestWaiterQueueOverflowAtMaxQueuePlusOne(t *testing.T) {
	var q waiterQueue[int]
	for i := 0; i < MaxQueue; i++ {
		require.True(t, q.enqueue(i))
	}
	assert.Equal(t, MaxQueue, q.len())
	assert.False(t, q.enqueue(MaxQueue))
}

func TestWaiterQueueDrainSealFreezesQueue(t *testing.T) {
	var q waiterQueue[int]
	require.True(t, q.enqueue(1))
	require.True(t, q.enqueue(2))

	drained := q.drainSeal()
	assert.Equal(t, []int{1, 2}, drained)
	assert.Equal(t, 0, q.len())

	assert.False(t, q.enqueue(3))
}

func TestRemoveByPtrExcisesOneEntry(t *testing.T) {
	var q waiterQueue[*pushWaiter[int]]
	a := &pushWaiter[int]{value: 1}
	b := &pushWaiter[int]{value: 2}
	c := &pushWaiter[int]{value: 3}
	q.enqueue(a)
	q.enqueue(b)
	q.enqueue(c)

	assert.True(t, removeByPtr(&q, b))
	assert.False(t, removeByPtr(&q, b))

	var remaining []*pushWaiter[int]
	for {
		w, ok := q.dequeue()
		if !ok {
			break
		}
		remaining = append(remaining, w)
	}
	assert.Equal(t, []*pushWaiter[int]{a, c}, remaining)
}
