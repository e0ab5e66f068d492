package bar

import (
	"context"
	"fmt"
	"time"
)

// DefaultJobTimeout bounds a Waker.Go job started without a timeout.
const DefaultJobTimeout = 30 * time.Second

type waker struct {
	id  Identity
	bus *Bus
}

// NewWaker returns a Waker that posts events for id on bus.
func NewWaker(id Identity, bus *Bus) Waker {
	return &waker{id: id, bus: bus}
}

func (w *waker) Go(timeout time.Duration, fn func(ctx context.Context) (any, error)) error {
	if !w.bus.startJob() {
		return ErrDraining
	}
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}

	go func() {
		ctx, cancel := context.WithTimeout(w.bus.jobCtx, timeout)
		defer cancel()

		type result struct {
			v   any
			err error
		}
		done := make(chan result, 1)
		go func() {
			v, err := fn(ctx)
			done <- result{v, err}
		}()

		ev := Event{Kind: EventAsync, ID: w.id, Job: true}
		select {
		case r := <-done:
			ev.Payload, ev.Err = r.v, r.err
		case <-ctx.Done():
			ev.Err = fmt.Errorf("async job timed out after %s: %w", timeout, ctx.Err())
		}
		w.bus.finishJob(ev)
	}()
	return nil
}

func (w *waker) Refresh() {
	w.bus.Fire(w.id)
}

func (w *waker) After(d time.Duration) {
	w.bus.ArmEarlier(w.id, d)
}
