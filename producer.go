package repeater

import "context"

// PushFunc is handed to the producer to emit values. It behaves exactly
// like the public Stream.Push: it returns at once when the value is
// handed to a waiting pull or staged in the buffer; otherwise it blocks
// until a later pull takes the value, the Stream closes, or ctx is done.
// It returns false (never an error) once the Stream has started closing.
type PushFunc[T any] func(ctx context.Context, v T) (bool, error)

// CloseFunc is handed to the producer to end the Stream early, from
// inside its own body, independent of its eventual return value. Passing
// a non-nil err closes with Error(err); nil closes normally.
type CloseFunc func(err error)

// StopSignal is handed to the producer so it can observe the Stream
// starting to close (a consumer's Return/Throw, or a close by the
// producer itself) and read the value passed to Return, the way a
// context's Done channel signals cancellation.
type StopSignal struct {
	sig *signal[any]
}

// Done closes once the Stream starts closing, whether through a
// consumer's Return or Throw or through the producer's close or return.
func (s *StopSignal) Done() <-chan struct{} { return s.sig.Done() }

// Value returns the value a consumer passed to Return, once settled; it
// is the zero value until then.
func (s *StopSignal) Value() any { return s.sig.peek() }

// Producer is the user-supplied callback that drives a Stream. It is
// invoked at most once, lazily, on the first call to Next. Its return
// value and error become the outcome observed by Return/Throw; a push
// made after the Stream has already started closing always reports
// false and never blocks forever.
type Producer[T any] func(push PushFunc[T], close CloseFunc, stop *StopSignal) (any, error)

// start settles startSignal and launches the producer harness goroutine.
// Called at most once, from the stateInitial branch of Next.
func (s *Stream[T]) start() {
	s.startSig.settle(struct{}{})
	go s.runProducer()
}

// runProducer is the Producer Harness: it invokes the user closure with
// panic/error capture, closes the Stream with whatever reason that
// outcome implies, and finally records the producer's true terminal
// outcome for Return/Throw, independent of what closeReason ended up
// being (spec §4.4's synchronous/asynchronous/error-after-close cases
// all fall out of this single recording).
func (s *Stream[T]) runProducer() {
	value, err := s.invokeProducer()

	reason := CloseReason{Kind: ReasonNormal}
	if err != nil {
		reason = CloseReason{Kind: ReasonError, Err: err}
	}
	s.transitionClosing(reason, nil)

	s.producerCompletion.settle(producerOutcome{value: value, err: err})

	s.mu.Lock()
	s.st = stateClosed
	s.mu.Unlock()
}

func (s *Stream[T]) invokeProducer() (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = wrapPanic(r)
		}
	}()

	push := func(ctx context.Context, v T) (bool, error) { return s.Push(ctx, v) }
	closeFn := func(e error) {
		reason := CloseReason{Kind: ReasonNormal}
		if e != nil {
			reason = CloseReason{Kind: ReasonError, Err: e}
		}
		s.transitionClosing(reason, nil)
	}
	stop := &StopSignal{sig: s.stopSig}

	return s.producer(push, closeFn, stop)
}
