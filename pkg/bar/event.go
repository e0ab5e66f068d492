package bar

import "gitlab.com/tinyland/lab/status-pulse/pkg/protocol"

// EventKind tags an Event.
type EventKind int

const (
	EventTimer EventKind = iota
	EventAsync
	EventClick
	EventRefresh
	EventShutdown
)

func (k EventKind) String() string {
	switch k {
	case EventTimer:
		return "timer"
	case EventAsync:
		return "async"
	case EventClick:
		return "click"
	case EventRefresh:
		return "refresh"
	case EventShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// ShutdownMode selects how the scheduler stops.
type ShutdownMode int

const (
	// ShutdownGraceful waits up to the drain timeout for in-flight async
	// jobs and renders their results.
	ShutdownGraceful ShutdownMode = iota

	// ShutdownImmediate stops without a grace period. Used when the bar
	// renderer is gone or the process was asked to terminate.
	ShutdownImmediate
)

// Refresh addresses one or more blocks for a forced update.
type Refresh struct {
	// All refreshes every block.
	All bool
	// Signal refreshes blocks configured with this realtime signal offset.
	Signal int
	// Name refreshes every instance of a block type, or only Instance when
	// that is set too.
	Name     string
	Instance string
}

func (r Refresh) matches(id Identity, signal int) bool {
	switch {
	case r.All:
		return true
	case r.Signal > 0:
		return signal == r.Signal
	case r.Name != "":
		return r.Name == id.Name && (r.Instance == "" || r.Instance == id.Instance)
	}
	return false
}

// Event is one unit of work for the scheduler loop.
type Event struct {
	Kind EventKind
	ID   Identity

	// EventAsync
	Payload any
	Err     error
	Job     bool

	Click    protocol.ClickEvent
	Refresh  Refresh
	Shutdown ShutdownMode
	Reason   string
}
