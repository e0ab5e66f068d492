package bar

import "time"

// Status tracks the runtime state of a single block. The scheduler updates
// it after every update, consume and click.
type Status struct {
	ID          Identity
	Healthy     bool
	Deferred    bool
	LastUpdate  time.Time
	LastError   error
	UpdateCount int64
	ErrorCount  int64
	LastLatency time.Duration
}

// Statuses returns a copy of every block's status in bar order. It is safe
// to call from any goroutine.
func (s *Scheduler) Statuses() []Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()

	out := make([]Status, len(s.statuses))
	copy(out, s.statuses)
	return out
}

// updateStatus applies fn to the status of slot idx.
func (s *Scheduler) updateStatus(idx int, fn func(st *Status)) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	if idx >= 0 && idx < len(s.statuses) {
		fn(&s.statuses[idx])
	}
}

func (s *Scheduler) record(idx int, latency time.Duration, err error) {
	now := time.Now()
	s.updateStatus(idx, func(st *Status) {
		st.Deferred = false
		st.LastUpdate = now
		st.LastLatency = latency
		st.UpdateCount++
		st.LastError = err
		st.Healthy = err == nil
		if err != nil {
			st.ErrorCount++
		}
	})
	s.metrics.BlockUpdate(s.slots[idx].id, latency, err)
}
