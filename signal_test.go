package repeater

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalSettleOnce(t *testing.T) {
	s := newSignal[int]()
	assert.False(t, s.settled())

	s.settle(1)
	s.settle(2) // second settle is a no-op

	assert.True(t, s.settled())
	assert.Equal(t, 1, s.peek())
	assert.Equal(t, 1, s.wait())
}

func TestSignalPeekBeforeSettleIsZeroValue(t *testing.T) {
	s := newSignal[string]()
	assert.Equal(t, "", s.peek())
}

func TestSignalWaitCtxSettledFirst(t *testing.T) {
	s := newSignal[int]()
	s.settle(42)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v, err := s.waitCtx(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestSignalWaitCtxCancelled(t *testing.T) {
	s := newSignal[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.waitCtx(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSignalSettleUnblocksConcurrentWaiter(t *testing.T) {
	s := newSignal[int]()
	done := make(chan int, 1)
	go func() {
		done <- s.wait()
	}()

	time.Sleep(5 * time.Millisecond)
	s.settle(7)

	select {
	case v := <-done:
		assert.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("waiter never unblocked")
	}
}
