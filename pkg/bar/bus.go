package bar

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Bus merges every wake-up source into one FIFO stream. Producers never
// block: the queue is unbounded. Timers live in a min-heap and a single
// time.Timer is armed for the earliest deadline, so an idle bar wakes only
// when some block is actually due.
//
// Next and TryNext must only be called from one goroutine.
type Bus struct {
	mu       sync.Mutex
	queue    []Event
	wake     chan struct{}
	timers   timerHeap
	armed    map[Identity]*timerEntry
	pending  map[Identity]bool
	inflight int
	draining bool

	timer *time.Timer
	now   func() time.Time

	jobCtx     context.Context
	cancelJobs context.CancelFunc

	// OnCoalesce is called when a duplicate timer fire is dropped.
	OnCoalesce func()
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		wake:       make(chan struct{}, 1),
		armed:      make(map[Identity]*timerEntry),
		pending:    make(map[Identity]bool),
		now:        time.Now,
		jobCtx:     ctx,
		cancelJobs: cancel,
	}
}

func (b *Bus) notify() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Post enqueues an event.
func (b *Bus) Post(ev Event) {
	b.mu.Lock()
	b.queue = append(b.queue, ev)
	b.mu.Unlock()
	b.notify()
}

// Fire enqueues a timer event for id unless one is already pending, in
// which case the fire is coalesced. It reports whether an event was queued.
func (b *Bus) Fire(id Identity) bool {
	b.mu.Lock()
	queued := b.fireLocked(id)
	b.mu.Unlock()
	if queued {
		b.notify()
	}
	return queued
}

func (b *Bus) fireLocked(id Identity) bool {
	if b.pending[id] {
		if b.OnCoalesce != nil {
			b.OnCoalesce()
		}
		return false
	}
	b.pending[id] = true
	b.queue = append(b.queue, Event{Kind: EventTimer, ID: id})
	return true
}

// Arm sets the timer for id to fire d from now, replacing any armed
// deadline. It returns false once the bus is draining.
func (b *Bus) Arm(id Identity, d time.Duration) bool {
	return b.arm(id, d, false)
}

// ArmEarlier is like Arm but never moves an armed deadline later.
func (b *Bus) ArmEarlier(id Identity, d time.Duration) bool {
	return b.arm(id, d, true)
}

func (b *Bus) arm(id Identity, d time.Duration, earlierOnly bool) bool {
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		return false
	}
	due := b.now().Add(d)
	if e, ok := b.armed[id]; ok {
		if !earlierOnly || due.Before(e.due) {
			e.due = due
			heap.Fix(&b.timers, e.index)
		}
	} else {
		e := &timerEntry{id: id, due: due}
		heap.Push(&b.timers, e)
		b.armed[id] = e
	}
	b.mu.Unlock()
	b.notify()
	return true
}

// fireDueLocked moves every expired timer into the queue.
func (b *Bus) fireDueLocked(now time.Time) {
	for len(b.timers) > 0 && !b.timers[0].due.After(now) {
		e := heap.Pop(&b.timers).(*timerEntry)
		delete(b.armed, e.id)
		b.fireLocked(e.id)
	}
}

func (b *Bus) popLocked() (Event, bool) {
	if len(b.queue) == 0 {
		return Event{}, false
	}
	ev := b.queue[0]
	b.queue[0] = Event{}
	b.queue = b.queue[1:]
	if len(b.queue) == 0 {
		b.queue = nil
	}
	if ev.Kind == EventTimer {
		delete(b.pending, ev.ID)
	}
	return ev, true
}

// Next blocks until an event is available or ctx is done.
func (b *Bus) Next(ctx context.Context) (Event, error) {
	for {
		b.mu.Lock()
		b.fireDueLocked(b.now())
		if ev, ok := b.popLocked(); ok {
			b.mu.Unlock()
			return ev, nil
		}
		var timerC <-chan time.Time
		if len(b.timers) > 0 {
			b.resetTimer(b.timers[0].due.Sub(b.now()))
			timerC = b.timer.C
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-b.wake:
		case <-timerC:
		}
	}
}

// TryNext returns the next event if one is ready without waiting.
func (b *Bus) TryNext() (Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fireDueLocked(b.now())
	return b.popLocked()
}

func (b *Bus) resetTimer(d time.Duration) {
	if b.timer == nil {
		b.timer = time.NewTimer(d)
		return
	}
	if !b.timer.Stop() {
		select {
		case <-b.timer.C:
		default:
		}
	}
	b.timer.Reset(d)
}

// Len returns the number of queued events.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// startJob registers an async job. It fails once the bus is draining.
func (b *Bus) startJob() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.draining {
		return false
	}
	b.inflight++
	return true
}

// finishJob queues the job's completion and releases it in one step, so
// Inflight() == 0 implies every completion is already queued.
func (b *Bus) finishJob(ev Event) {
	b.mu.Lock()
	b.queue = append(b.queue, ev)
	b.inflight--
	b.mu.Unlock()
	b.notify()
}

// Inflight returns the number of running async jobs.
func (b *Bus) Inflight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inflight
}

// Drain stops accepting timers and jobs and drops armed timers.
func (b *Bus) Drain() {
	b.mu.Lock()
	b.draining = true
	b.timers = nil
	b.armed = make(map[Identity]*timerEntry)
	b.mu.Unlock()
	b.notify()
}

// Close cancels the context of every outstanding async job.
func (b *Bus) Close() {
	b.Drain()
	b.cancelJobs()
}

type timerEntry struct {
	id    Identity
	due   time.Time
	index int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].due.Before(h[j].due) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
