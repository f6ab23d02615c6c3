package repeater

import (
	"context"

	"github.com/hashicorp/go-multierror"
)

// Race returns a Stream that forwards values from whichever input
// produces first, Return()-ing every other input the first time it
// loses a race and proxying exclusively to the winner from then on.
// If an input faults on its first pull, or returning a loser fails,
// those errors are joined with multierror and the combined Stream closes
// with the joined error straight away; the winning value, if any, is
// then not forwarded.
func Race[T any](streams []*Stream[T]) *Stream[T] {
	producer := func(push PushFunc[T], close CloseFunc, stop *StopSignal) (any, error) {
		ctx, cancel := contextFromStop(stop)
		defer cancel()

		winner, first, cleanupErr := raceNext(ctx, streams)
		if cleanupErr != nil {
			close(cleanupErr)
			return nil, cleanupErr
		}
		if winner < 0 {
			// Every input was already done; nothing to forward.
			return nil, nil
		}

		v := first
		for {
			ok, perr := push(ctx, v)
			if perr != nil {
				return nil, perr
			}
			if !ok {
				return nil, nil
			}
			var done bool
			var err error
			v, done, err = streams[winner].Next(ctx)
			if err != nil {
				return nil, err
			}
			if done {
				return nil, nil
			}
		}
	}
	return New[T](producer, nil)
}

// raceNext issues one Next call per input concurrently, returning the
// index of whichever settles first with a value (done == false). Every
// other input is Return()-ed; their cleanup errors are joined. If every
// input reports done on its very first pull, winner is -1.
func raceNext[T any](ctx context.Context, streams []*Stream[T]) (winner int, first T, cleanupErr error) {
	type outcome struct {
		idx  int
		v    T
		done bool
		err  error
	}
	results := make(chan outcome, len(streams))
	for i, st := range streams {
		i, st := i, st
		go func() {
			v, done, err := st.Next(ctx)
			results <- outcome{idx: i, v: v, done: done, err: err}
		}()
	}

	settled := false
	var merr *multierror.Error
	for range streams {
		o := <-results
		switch {
		case settled:
			returnLoser(ctx, streams[o.idx], &merr)
		case o.err != nil:
			settled = true
			merr = multierror.Append(merr, o.err)
		case o.done:
			// This input was already exhausted; keep listening for a
			// winner among the rest.
		default:
			settled = true
			winner = o.idx
			first = o.v
			for j, st := range streams {
				if j != o.idx {
					returnLoser(ctx, st, &merr)
				}
			}
		}
	}
	if !settled {
		return -1, first, merr.ErrorOrNil()
	}
	return winner, first, merr.ErrorOrNil()
}

func returnLoser[T any](ctx context.Context, s *Stream[T], merr **multierror.Error) {
	if _, _, err := s.Return(ctx, nil); err != nil {
		*merr = multierror.Append(*merr, err)
	}
}

// Merge returns a Stream that forwards values from every input as they
// arrive, interleaved in arrival order, completing once all inputs are
// done. A fault on any input faults the merged Stream and Return()s the
// remaining inputs, joining their cleanup errors with multierror onto the
// fault as the producer's terminal error (observed through Return).
func Merge[T any](streams []*Stream[T]) *Stream[T] {
	producer := func(push PushFunc[T], close CloseFunc, stop *StopSignal) (any, error) {
		ctx, cancel := contextFromStop(stop)
		defer cancel()

		type item struct {
			idx  int
			v    T
			done bool
			err  error
		}
		next := make(chan item)
		alive := make([]bool, len(streams))
		pending := 0

		pull := func(i int) {
			pending++
			go func() {
				v, done, err := streams[i].Next(ctx)
				next <- item{idx: i, v: v, done: done, err: err}
			}()
		}
		for i := range streams {
			alive[i] = true
			pull(i)
		}

		var merr *multierror.Error
		var faultErr error
		faulted := false

		returnAlive := func(except int) {
			for i, st := range streams {
				if i == except || !alive[i] {
					continue
				}
				alive[i] = false
				if _, _, err := st.Return(ctx, nil); err != nil {
					merr = multierror.Append(merr, err)
				}
			}
		}

		for pending > 0 {
			it := <-next
			pending--
			if faulted {
				// Already unwinding: this is just the outcome of a Next
				// call that was in flight when the fault hit. Its stream
				// was already Return()-ed by returnAlive; nothing more to
				// forward.
				continue
			}
			switch {
			case it.err != nil:
				faultErr = it.err
				faulted = true
				alive[it.idx] = false
				returnAlive(-1)
			case it.done:
				alive[it.idx] = false
			default:
				ok, perr := push(ctx, it.v)
				if perr != nil {
					faultErr = perr
					faulted = true
					alive[it.idx] = false
					returnAlive(-1)
				} else if !ok {
					alive[it.idx] = false
				} else {
					pull(it.idx)
				}
			}
		}

		if faultErr != nil {
			close(faultErr)
			if merr != nil {
				return nil, multierror.Append(faultErr, merr)
			}
			return nil, faultErr
		}
		return nil, merr.ErrorOrNil()
	}
	return New[T](producer, nil)
}

// contextFromStop derives a cancellable context that is cancelled the
// moment a consumer calls Return/Throw on the combined Stream, so a
// Race/Merge producer's in-flight Next calls against its inputs unwind
// promptly instead of leaking until those inputs close on their own.
func contextFromStop(stop *StopSignal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-stop.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
