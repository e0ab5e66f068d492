package blocks

import (
	"context"
	"io"
	"log/slog"
	"time"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
	"gitlab.com/tinyland/lab/status-pulse/pkg/config"
)

// Env is everything a block receives at construction: its identity, its
// configuration keys, the read-only presentation context and a handle to
// request wake-ups. Blocks must not reach into the scheduler any other way.
type Env struct {
	ID     bar.Identity
	Fields config.Fields
	Shared bar.Shared
	Waker  bar.Waker
	Logger *slog.Logger
}

// Decode decodes the block's configuration keys into v. Unknown keys are
// an error.
func (e Env) Decode(v interface{}) error {
	return e.Fields.Decode(v)
}

// Log returns the block logger, or a discarding one in tests.
func (e Env) Log() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e.Logger
}

// Interval returns d, or def when d is zero.
func Interval(d config.Duration, def time.Duration) time.Duration {
	if d.Duration > 0 {
		return d.Duration
	}
	return def
}

// SyncWaker is a Waker that runs jobs synchronously and records wake-up
// requests. Block tests use it to exercise async paths without a
// scheduler.
type SyncWaker struct {
	// Results and Errors collect what Go jobs returned.
	Results   []any
	Errors    []error
	Refreshes int
	Afters    []time.Duration
}

func (w *SyncWaker) Go(timeout time.Duration, fn func(ctx context.Context) (any, error)) error {
	if timeout <= 0 {
		timeout = bar.DefaultJobTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	v, err := fn(ctx)
	w.Results = append(w.Results, v)
	w.Errors = append(w.Errors, err)
	return nil
}

func (w *SyncWaker) Refresh()              { w.Refreshes++ }
func (w *SyncWaker) After(d time.Duration) { w.Afters = append(w.Afters, d) }

// Last returns the result of the most recent Go job.
func (w *SyncWaker) Last() (any, error) {
	if len(w.Results) == 0 {
		return nil, nil
	}
	return w.Results[len(w.Results)-1], w.Errors[len(w.Errors)-1]
}
