package repeater

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrStreamClosed identifies a closed Stream. No operation in this
// package returns it: closure results use {done: true}, false from Push,
// or the producer's own error, per spec's propagation policy.
var ErrStreamClosed = errors.New("repeater: stream closed")

// ErrBufferFull is returned by FixedBuffer.Add when called directly
// against a full buffer (the Stream core never calls Add in that state;
// Full is always checked first).
var ErrBufferFull = errors.New("repeater: buffer full")

// OverflowKind distinguishes which waiter queue overflowed.
type OverflowKind int

const (
	PushOverflow OverflowKind = iota
	PullOverflow
)

func (k OverflowKind) String() string {
	switch k {
	case PushOverflow:
		return "push"
	case PullOverflow:
		return "pull"
	default:
		return "unknown"
	}
}

// OverflowError reports that MAX_QUEUE suspended pushes or pulls were
// already outstanding when one more was attempted. It does not close the
// Stream; it is reported to the caller of the offending operation only.
type OverflowError struct {
	Kind OverflowKind
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("repeater: %s queue overflow (max %d)", e.Kind, MaxQueue)
}

// BufferDiscipline identifies which of the three buffer variants a
// capacity error was raised against.
type BufferDiscipline int

const (
	DisciplineFixed BufferDiscipline = iota
	DisciplineSliding
	DisciplineDropping
)

func (d BufferDiscipline) String() string {
	switch d {
	case DisciplineFixed:
		return "fixed"
	case DisciplineSliding:
		return "sliding"
	case DisciplineDropping:
		return "dropping"
	default:
		return "unknown"
	}
}

// InvalidCapacityError is returned by the buffer constructors when
// handed an out-of-range capacity (Fixed requires cap >= 0, Sliding and
// Dropping require cap >= 1).
type InvalidCapacityError struct {
	Discipline BufferDiscipline
	Capacity   int
}

func (e *InvalidCapacityError) Error() string {
	return fmt.Sprintf("repeater: invalid capacity %d for %s buffer", e.Capacity, e.Discipline)
}

// wrapPanic turns a recovered producer panic into an error carrying a
// stack trace, the way telepresence and kcptun wrap errors at a
// goroutine boundary rather than losing context with a bare fmt.Errorf.
func wrapPanic(r any) error {
	if err, ok := r.(error); ok {
		return pkgerrors.Wrap(err, "repeater: producer panicked")
	}
	return pkgerrors.Errorf("repeater: producer panicked: %v", r)
}
