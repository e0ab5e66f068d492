// Package bar is the scheduling core of status-pulse. A Scheduler owns a
// fixed, ordered set of blocks, merges their timers, async completions,
// clicks and refresh requests into a single event stream, and writes a full
// bar snapshot through a protocol.Encoder whenever the bar changes.
//
// Bar state is only ever touched by the goroutine running Scheduler.Run.
// Blocks that need to do slow work hand it to their Waker, and the result
// re-enters the loop as an event.
package bar

import (
	"context"
	"time"

	"gitlab.com/tinyland/lab/status-pulse/pkg/protocol"
	"gitlab.com/tinyland/lab/status-pulse/pkg/theme"
)

// Identity names a block: the configured type and an instance that tells
// copies of the same type apart. It is the routing key for clicks.
type Identity struct {
	Name     string
	Instance string
}

func (id Identity) String() string { return id.Name + "/" + id.Instance }

// State selects the theme colours of a Part.
type State int

const (
	StateIdle State = iota
	StateInfo
	StateGood
	StateWarning
	StateCritical
)

var stateNames = [...]string{"idle", "info", "good", "warning", "critical"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "idle"
	}
	return stateNames[s]
}

// ParseState maps a state name back to a State. Unknown names are idle.
func ParseState(name string) State {
	for i, n := range stateNames {
		if n == name {
			return State(i)
		}
	}
	switch name {
	case "ok":
		return StateGood
	case "warn":
		return StateWarning
	case "error":
		return StateCritical
	}
	return StateIdle
}

// Part is one sub-segment of a block's output. Colour fields override the
// theme colours for State when set.
type Part struct {
	Text      string
	ShortText string
	// Icon is looked up in the shared icon set and prefixed to the text.
	Icon  string
	State State

	Color      string
	Background string
	Border     string

	MinWidth     int
	MinWidthText string
	Align        string
	Urgent       bool
	Markup       string

	Separator           *bool
	SeparatorBlockWidth *int
}

// Segment is a block's complete output: one or more parts rendered left to
// right in the block's slot.
type Segment []Part

// Text returns a segment with a single idle part.
func Text(s string) Segment {
	return Segment{{Text: s}}
}

// Degraded is the fixed indicator shown in place of a block whose last
// update failed.
func Degraded(id Identity) Segment {
	return Segment{{
		Text:      "✗ " + id.Name,
		ShortText: "✗",
		State:     StateCritical,
	}}
}

// Block is the contract every widget implements.
type Block interface {
	// Update collects fresh data and returns the new output. Returning
	// ErrDeferred means the work was handed to the block's Waker and the
	// result will arrive later through Consume.
	Update(ctx context.Context) (Segment, error)

	// Interval is the minimum time between updates. Zero means the block
	// is purely event-driven.
	Interval() time.Duration
}

// Clicker is implemented by blocks that react to clicks. The bool result
// reports whether the returned segment should replace the current one.
type Clicker interface {
	Click(ctx context.Context, ev protocol.ClickEvent) (Segment, bool, error)
}

// Consumer is implemented by blocks that receive async payloads, either
// from Waker.Go jobs or from a Subscriber.
type Consumer interface {
	Consume(ctx context.Context, payload any) (Segment, error)
}

// Subscriber is implemented by blocks with a long-lived event source.
// Subscribe is started once in its own goroutine and should run until ctx
// is cancelled, calling emit for every new payload.
type Subscriber interface {
	Subscribe(ctx context.Context, emit func(payload any)) error
}

// Waker is the write-only handle a block uses to request future wake-ups.
type Waker interface {
	// Go runs fn off the loop. Its result is delivered to the block's
	// Consume; an error or timeout is a collection failure. Go fails with
	// ErrDraining once shutdown has begun.
	Go(timeout time.Duration, fn func(ctx context.Context) (any, error)) error

	// Refresh requests an update as soon as possible.
	Refresh()

	// After requests an update no later than d from now.
	After(d time.Duration)
}

// Shared is the read-only presentation context handed to every block.
type Shared struct {
	Theme theme.Theme
	Icons theme.Icons
}
