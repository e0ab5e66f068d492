package bar

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/tinyland/lab/status-pulse/pkg/protocol"
)

// MockBlock implements Block, Clicker and Consumer for testing. It returns
// a configurable segment and records every call.
type MockBlock struct {
	interval time.Duration
	segment  Segment
	err      error

	mu     sync.RWMutex
	clicks []protocol.ClickEvent

	updateCount  atomic.Int64
	consumeCount atomic.Int64

	// UpdateFunc, if set, overrides the default Update behavior.
	UpdateFunc func(ctx context.Context) (Segment, error)

	// ClickFunc, if set, overrides the default Click behavior, which
	// records the event and leaves the segment unchanged.
	ClickFunc func(ctx context.Context, ev protocol.ClickEvent) (Segment, bool, error)

	// ConsumeFunc, if set, overrides the default Consume behavior, which
	// renders the payload with Text when it is a string.
	ConsumeFunc func(ctx context.Context, payload any) (Segment, error)
}

// MockBlockOption configures a MockBlock.
type MockBlockOption func(*MockBlock)

// WithSegment sets the segment returned by Update.
func WithSegment(seg Segment) MockBlockOption {
	return func(m *MockBlock) { m.segment = seg }
}

// WithText sets a single-part segment returned by Update.
func WithText(s string) MockBlockOption {
	return func(m *MockBlock) { m.segment = Text(s) }
}

// WithError sets the error returned by Update.
func WithError(err error) MockBlockOption {
	return func(m *MockBlock) { m.err = err }
}

// WithUpdateFunc sets a custom function for Update.
func WithUpdateFunc(fn func(ctx context.Context) (Segment, error)) MockBlockOption {
	return func(m *MockBlock) { m.UpdateFunc = fn }
}

// WithClickFunc sets a custom function for Click.
func WithClickFunc(fn func(ctx context.Context, ev protocol.ClickEvent) (Segment, bool, error)) MockBlockOption {
	return func(m *MockBlock) { m.ClickFunc = fn }
}

// WithConsumeFunc sets a custom function for Consume.
func WithConsumeFunc(fn func(ctx context.Context, payload any) (Segment, error)) MockBlockOption {
	return func(m *MockBlock) { m.ConsumeFunc = fn }
}

// NewMockBlock creates a mock block with the given interval and options.
func NewMockBlock(interval time.Duration, opts ...MockBlockOption) *MockBlock {
	m := &MockBlock{interval: interval}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Interval returns the configured update interval.
func (m *MockBlock) Interval() time.Duration { return m.interval }

// SetText updates the returned segment (thread-safe).
func (m *MockBlock) SetText(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segment = Text(s)
}

// SetError updates the returned error (thread-safe).
func (m *MockBlock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Update increments the call counter and returns the configured segment
// and error, or delegates to UpdateFunc if set.
func (m *MockBlock) Update(ctx context.Context) (Segment, error) {
	m.updateCount.Add(1)

	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.segment, m.err
}

// Click records the event.
func (m *MockBlock) Click(ctx context.Context, ev protocol.ClickEvent) (Segment, bool, error) {
	m.mu.Lock()
	m.clicks = append(m.clicks, ev)
	m.mu.Unlock()

	if m.ClickFunc != nil {
		return m.ClickFunc(ctx, ev)
	}
	return nil, false, nil
}

// Consume handles an async payload.
func (m *MockBlock) Consume(ctx context.Context, payload any) (Segment, error) {
	m.consumeCount.Add(1)

	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, payload)
	}
	if s, ok := payload.(string); ok {
		return Text(s), nil
	}
	return nil, nil
}

// UpdateCount returns how many times Update has been called.
func (m *MockBlock) UpdateCount() int64 { return m.updateCount.Load() }

// ConsumeCount returns how many times Consume has been called.
func (m *MockBlock) ConsumeCount() int64 { return m.consumeCount.Load() }

// Clicks returns a copy of the received click events.
func (m *MockBlock) Clicks() []protocol.ClickEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]protocol.ClickEvent, len(m.clicks))
	copy(out, m.clicks)
	return out
}
