package bar

import "time"

// Metrics receives scheduler telemetry. Implementations must be safe for
// concurrent use; the scheduler calls them from the loop goroutine only,
// but the bus reports coalesced timers from whichever goroutine fires them.
type Metrics interface {
	BlockUpdate(id Identity, latency time.Duration, err error)
	Click(routed bool)
	Render()
	TimerCoalesced()
}

type noopMetrics struct{}

func (noopMetrics) BlockUpdate(Identity, time.Duration, error) {}
func (noopMetrics) Click(bool)                                 {}
func (noopMetrics) Render()                                    {}
func (noopMetrics) TimerCoalesced()                            {}

// NoopMetrics returns a Metrics that discards everything.
func NoopMetrics() Metrics { return noopMetrics{} }
