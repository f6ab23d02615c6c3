package repeater

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// state is the Stream's coarse lifecycle position (spec §3).
type state int32

const (
	stateInitial state = iota
	stateRunning
	stateClosing
	stateClosed
)

// CloseReasonKind distinguishes why a Stream closed.
type CloseReasonKind int

const (
	ReasonNone CloseReasonKind = iota
	ReasonNormal
	ReasonError
)

// CloseReason is recorded exactly once per Stream, first-writer-wins.
type CloseReason struct {
	Kind CloseReasonKind
	Err  error
}

// pullResult is what a suspended Next ultimately receives.
type pullResult[T any] struct {
	value T
	done  bool
	err   error
}

// pushWaiter is a producer push suspended because the buffer was full
// and no pull was waiting.
type pushWaiter[T any] struct {
	value T
	sig   *signal[bool]
}

// pullWaiter is a consumer pull suspended because nothing was available.
type pullWaiter[T any] struct {
	sig *signal[pullResult[T]]
}

// producerOutcome is the producer's terminal result, surfaced through
// Return/Throw regardless of what closeReason ended up being.
type producerOutcome struct {
	value any
	err   error
}

// Stream is the bounded, lazily-started, consumer-pull asynchronous
// sequence described by spec.md. The zero value is not usable; construct
// with New.
type Stream[T any] struct {
	id uuid.UUID

	mu     sync.Mutex
	st     state
	reason CloseReason
	// errorDelivered gates the single error rejection a Close(Error(e))
	// owes across every pending and subsequent Next call combined: either
	// a waiter already queued at close time claims it (transitionClosing)
	// or the first post-close Next call does (case 4 below); once true,
	// every other call just sees {done: true}.
	errorDelivered bool

	buf   Buffer[T]
	pushQ waiterQueue[*pushWaiter[T]]
	pullQ waiterQueue[*pullWaiter[T]]

	producer Producer[T]

	startSig           *signal[struct{}]
	stopSig            *signal[any]
	producerCompletion *signal[producerOutcome]
}

// New constructs a Stream around producer. If buf is nil, a zero-capacity
// FixedBuffer is used (every push must hand off directly to a pull or
// suspend). The producer is not invoked until the first call to Next.
func New[T any](producer Producer[T], buf Buffer[T]) *Stream[T] {
	if buf == nil {
		fb, _ := NewFixedBuffer[T](0)
		buf = fb
	}
	return &Stream[T]{
		id:                 uuid.New(),
		st:                 stateInitial,
		buf:                buf,
		producer:           producer,
		startSig:           newSignal[struct{}](),
		stopSig:            newSignal[any](),
		producerCompletion: newSignal[producerOutcome](),
	}
}

// ID returns this Stream's identity, useful for log correlation; it
// carries no coordination semantics.
func (s *Stream[T]) ID() uuid.UUID { return s.id }

// NumWaiters reports a point-in-time snapshot of suspended pushes and
// pulls, mirroring the teacher's Session.NumStreams observability call.
func (s *Stream[T]) NumWaiters() (pushes, pulls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushQ.len(), s.pullQ.len()
}

// Push is the producer-side handle. See spec §4.3.1 for the five
// evaluated cases.
func (s *Stream[T]) Push(ctx context.Context, v T) (bool, error) {
	s.mu.Lock()

	if s.st == stateClosing || s.st == stateClosed {
		s.mu.Unlock()
		return false, nil
	}

	if pw, ok := s.pullQ.dequeue(); ok {
		s.mu.Unlock()
		pw.sig.settle(pullResult[T]{value: v})
		return true, nil
	}

	if !s.buf.Full() {
		_ = s.buf.Add(v) // never fails: Full() was just checked false
		s.mu.Unlock()
		return true, nil
	}

	if s.pushQ.len() >= MaxQueue {
		s.mu.Unlock()
		return false, &OverflowError{Kind: PushOverflow}
	}

	w := &pushWaiter[T]{value: v, sig: newSignal[bool]()}
	s.pushQ.enqueue(w)
	s.mu.Unlock()

	delivered, err := w.sig.waitCtx(ctx)
	if err != nil {
		// Abandoned: best-effort removal so close/next doesn't later
		// deliver to a waiter nobody is listening to anymore.
		s.mu.Lock()
		removeByPtr(&s.pushQ, w)
		s.mu.Unlock()
		return false, err
	}
	return delivered, nil
}

// Next is the consumer-side pull. See spec §4.3.3 for the six evaluated
// cases.
func (s *Stream[T]) Next(ctx context.Context) (value T, done bool, err error) {
	s.mu.Lock()

	if s.st == stateInitial {
		s.st = stateRunning
		s.mu.Unlock()
		s.start()
		s.mu.Lock()
	}

	if !s.buf.Empty() {
		v, _ := s.buf.Remove()
		if pw, ok := s.pushQ.dequeue(); ok {
			_ = s.buf.Add(pw.value)
			s.mu.Unlock()
			pw.sig.settle(true)
		} else {
			s.mu.Unlock()
		}
		return v, false, nil
	}

	if pw, ok := s.pushQ.dequeue(); ok {
		s.mu.Unlock()
		pw.sig.settle(true)
		return pw.value, false, nil
	}

	if s.st == stateClosing || s.st == stateClosed {
		if s.reason.Kind == ReasonError && !s.errorDelivered {
			s.errorDelivered = true
			rerr := s.reason.Err
			s.mu.Unlock()
			var zero T
			return zero, true, rerr
		}
		s.mu.Unlock()
		var zero T
		return zero, true, nil
	}

	if s.pullQ.len() >= MaxQueue {
		s.mu.Unlock()
		var zero T
		return zero, false, &OverflowError{Kind: PullOverflow}
	}

	w := &pullWaiter[T]{sig: newSignal[pullResult[T]]()}
	s.pullQ.enqueue(w)
	s.mu.Unlock()

	res, cerr := w.sig.waitCtx(ctx)
	if cerr != nil {
		s.mu.Lock()
		removeByPtr(&s.pullQ, w)
		s.mu.Unlock()
		var zero T
		return zero, false, cerr
	}
	return res.value, res.done, res.err
}

// Return initiates a normal close (if the Stream isn't closed already)
// and blocks for the producer's terminal outcome. v is observable by the
// producer via StopSignal.Value. If the Stream was never started, the
// producer is never invoked and the result is immediately {done: true}.
// If an Error reason ends up winning the close (e.g. a concurrent Throw
// beat this call, or the producer itself faulted), that error is the
// rejection even though this call only asked for a normal close.
func (s *Stream[T]) Return(ctx context.Context, v any) (value any, done bool, err error) {
	s.mu.Lock()
	if s.st == stateInitial {
		s.st = stateClosed
		s.reason = CloseReason{Kind: ReasonNormal}
		s.mu.Unlock()
		return nil, true, nil
	}
	if s.st == stateClosed && !s.startSig.settled() {
		// Closed by an earlier Return/Throw before the producer ever ran.
		s.mu.Unlock()
		return nil, true, nil
	}
	s.mu.Unlock()

	s.transitionClosing(CloseReason{Kind: ReasonNormal}, v)

	outcome, cerr := s.producerCompletion.waitCtx(ctx)
	if cerr != nil {
		return nil, true, cerr
	}
	if outcome.err != nil {
		return nil, true, outcome.err
	}
	s.mu.Lock()
	reason := s.reason
	s.mu.Unlock()
	if reason.Kind == ReasonError {
		return nil, true, reason.Err
	}
	return outcome.value, true, nil
}

// Throw faults the Stream. If already Closed, it rejects with err
// directly. If the Stream was never started (Initial), the producer is
// never invoked and the result rejects with err immediately. Otherwise
// it closes with Error(err) (subject to first-reason-wins) and
// delegates to Return, per spec §4.3.5: this always produces a
// rejection when err is the winning close reason, even if the producer
// itself completes cleanly once it observes the shutdown. If an earlier
// normal close won instead, the rejection is err.
func (s *Stream[T]) Throw(ctx context.Context, err error) (value any, done bool, rerr error) {
	s.mu.Lock()
	switch s.st {
	case stateClosed:
		s.mu.Unlock()
		return nil, true, err
	case stateInitial:
		s.st = stateClosed
		s.reason = CloseReason{Kind: ReasonError, Err: err}
		s.mu.Unlock()
		return nil, true, err
	}
	s.mu.Unlock()

	s.transitionClosing(CloseReason{Kind: ReasonError, Err: err}, nil)
	value, done, rerr = s.Return(ctx, nil)
	if rerr == nil {
		rerr = err
	}
	return value, done, rerr
}

// transitionClosing performs the Running -> Closing transition: records
// the reason (first writer wins), drains and seals both waiter queues
// with the close policy from spec §4.3.2, and settles stopSignal. A
// no-op if already Closing or Closed.
func (s *Stream[T]) transitionClosing(reason CloseReason, stopValue any) {
	s.mu.Lock()
	if s.st == stateClosing || s.st == stateClosed {
		s.mu.Unlock()
		return
	}
	s.reason = reason
	s.st = stateClosing
	pushWaiters := s.pushQ.drainSeal()
	pullWaiters := s.pullQ.drainSeal()
	// The error rejection is delivered exactly once across every pending
	// and subsequent pull (spec §8): if any waiter was already queued
	// when the error arrived, it claims that one delivery here, and
	// errorDelivered must be set now so no later Next() call hands the
	// same error out a second time.
	deliverErrorTo := -1
	if reason.Kind == ReasonError && len(pullWaiters) > 0 && !s.errorDelivered {
		deliverErrorTo = 0
		s.errorDelivered = true
	}
	s.mu.Unlock()

	// No lock held across these settles: they may run arbitrary waiter
	// continuations (spec §5: no lock across a user callback).
	for _, w := range pushWaiters {
		w.sig.settle(false)
	}
	for i, w := range pullWaiters {
		if i == deliverErrorTo {
			w.sig.settle(pullResult[T]{done: true, err: reason.Err})
		} else {
			w.sig.settle(pullResult[T]{done: true})
		}
	}
	s.stopSig.settle(stopValue)
}
