package bar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/tinyland/lab/status-pulse/pkg/protocol"
)

// Phase is the scheduler's lifecycle state.
type Phase int32

const (
	PhaseRunning Phase = iota
	PhaseDraining
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseDraining:
		return "draining"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	// DefaultUpdateCeiling bounds one inline Update or Click call.
	DefaultUpdateCeiling = 500 * time.Millisecond
	// DefaultDrainTimeout is the grace period of a graceful shutdown.
	DefaultDrainTimeout = 2 * time.Second
	// DefaultMaxBatch caps how many ready events are folded into one render.
	DefaultMaxBatch = 128
)

// Options configures a Scheduler.
type Options struct {
	// Encoder receives the header and every snapshot. Required.
	Encoder protocol.Encoder
	// Header is written once before the first snapshot. Defaults to
	// protocol.DefaultHeader().
	Header *protocol.Header
	// Input is the click stream from the bar renderer. Nil disables clicks.
	// End of input stops the scheduler.
	Input io.Reader

	Logger  *slog.Logger
	Metrics Metrics
	Shared  Shared

	DrainTimeout  time.Duration
	UpdateCeiling time.Duration
	MaxBatch      int

	// OnPhase is called from the loop goroutine on every phase change.
	OnPhase func(Phase)
}

type slot struct {
	id       Identity
	block    Block
	signal   int
	segment  Segment
	deferred bool
	// pending records a forced refresh that arrived while a job was in
	// flight; it runs once the job result is consumed.
	pending bool
}

// target is the immutable addressing data of a slot. It is written only by
// Add and may be read from any goroutine once Run has started.
type target struct {
	id     Identity
	signal int
}

// Scheduler owns the blocks and the bar state and runs the event loop.
type Scheduler struct {
	opts    Options
	logger  *slog.Logger
	metrics Metrics
	bus     *Bus

	slots   []slot
	targets []target
	index   map[Identity]int
	dirty bool

	phase      atomic.Int32
	started    atomic.Bool
	outputDead bool
	immediate  bool
	stopSubs   context.CancelFunc

	statusMu sync.RWMutex
	statuses []Status
}

// New returns a scheduler with no blocks.
func New(opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Metrics == nil {
		opts.Metrics = NoopMetrics()
	}
	if opts.Header == nil {
		h := protocol.DefaultHeader()
		opts.Header = &h
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	if opts.UpdateCeiling <= 0 {
		opts.UpdateCeiling = DefaultUpdateCeiling
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = DefaultMaxBatch
	}

	s := &Scheduler{
		opts:    opts,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		bus:     NewBus(),
		index:   make(map[Identity]int),
	}
	s.bus.OnCoalesce = s.metrics.TimerCoalesced
	return s
}

// Waker returns the wake-up handle for the block that will be added as id.
func (s *Scheduler) Waker(id Identity) Waker {
	return NewWaker(id, s.bus)
}

// Add appends a block to the bar. Order of Add calls is render order.
// signal is the block's realtime refresh signal offset, 0 for none.
func (s *Scheduler) Add(id Identity, b Block, signal int) error {
	if s.started.Load() {
		return errors.New("bar: cannot add blocks after Run")
	}
	if id.Name == "" {
		return &ConfigurationError{Err: errors.New("block without a name")}
	}
	if _, dup := s.index[id]; dup {
		return &ConfigurationError{Block: id.String(), Err: errors.New("duplicate identity")}
	}
	s.index[id] = len(s.slots)
	s.slots = append(s.slots, slot{id: id, block: b, signal: signal, segment: Segment{{}}})
	s.targets = append(s.targets, target{id: id, signal: signal})
	s.statuses = append(s.statuses, Status{ID: id, Healthy: true})
	return nil
}

// Len returns the number of blocks.
func (s *Scheduler) Len() int { return len(s.targets) }

// Blocks returns the block identities in bar order.
func (s *Scheduler) Blocks() []Identity {
	ids := make([]Identity, len(s.targets))
	for i, t := range s.targets {
		ids[i] = t.id
	}
	return ids
}

// Signals returns the distinct realtime signal offsets used by blocks.
func (s *Scheduler) Signals() []int {
	seen := make(map[int]bool)
	var out []int
	for _, t := range s.targets {
		if t.signal > 0 && !seen[t.signal] {
			seen[t.signal] = true
			out = append(out, t.signal)
		}
	}
	return out
}

// Match returns how many blocks r addresses. Safe to call from any
// goroutine; it never touches bar state.
func (s *Scheduler) Match(r Refresh) int {
	n := 0
	for _, t := range s.targets {
		if r.matches(t.id, t.signal) {
			n++
		}
	}
	return n
}

// Refresh asks the loop to update the blocks r addresses. Safe to call from
// any goroutine.
func (s *Scheduler) Refresh(r Refresh) {
	s.bus.Post(Event{Kind: EventRefresh, Refresh: r})
}

// Shutdown asks the loop to stop. Safe to call from any goroutine.
func (s *Scheduler) Shutdown(mode ShutdownMode, reason string) {
	s.bus.Post(Event{Kind: EventShutdown, Shutdown: mode, Reason: reason})
}

// Phase returns the current lifecycle phase.
func (s *Scheduler) Phase() Phase { return Phase(s.phase.Load()) }

func (s *Scheduler) setPhase(p Phase) {
	if s.Phase() == p {
		return
	}
	s.phase.Store(int32(p))
	s.logger.Info("scheduler phase", "phase", p.String())
	if s.opts.OnPhase != nil {
		s.opts.OnPhase(p)
	}
}

// Run writes the protocol header and runs the event loop until shutdown.
// It returns nil on a clean stop, a *ConfigurationError when no blocks are
// configured, and a wrapped ErrProtocolEncode if a snapshot cannot be
// encoded.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.slots) == 0 {
		return &ConfigurationError{Err: errors.New("no blocks configured")}
	}
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("bar: scheduler already started")
	}
	defer s.bus.Close()

	if err := s.opts.Encoder.WriteHeader(*s.opts.Header); err != nil {
		s.setPhase(PhaseStopped)
		return fmt.Errorf("protocol handshake: %w", err)
	}

	// Every block gets an immediate first update, queued ahead of anything
	// a subscription or click can produce.
	for i := range s.slots {
		s.bus.Fire(s.slots[i].id)
	}
	s.dirty = true

	subCtx, stopSubs := context.WithCancel(ctx)
	s.stopSubs = stopSubs
	defer stopSubs()
	s.startSubscribers(subCtx)

	if s.opts.Input != nil {
		go s.readClicks(subCtx)
	}

	s.logger.Info("scheduler started", "blocks", len(s.slots))
	return s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) error {
	for s.Phase() == PhaseRunning {
		ev, err := s.bus.Next(ctx)
		if err != nil {
			s.logger.Info("context done, stopping", "error", err)
			s.setPhase(PhaseDraining)
			break
		}
		s.dispatch(ctx, ev)
		for n := 1; n < s.opts.MaxBatch && s.Phase() == PhaseRunning; n++ {
			ev, ok := s.bus.TryNext()
			if !ok {
				break
			}
			s.dispatch(ctx, ev)
		}
		if err := s.flush(); err != nil {
			s.setPhase(PhaseStopped)
			return err
		}
	}
	return s.drain(ctx)
}

// drain runs the Draining phase: only async job completions are handled,
// until none are in flight or the grace period expires.
func (s *Scheduler) drain(ctx context.Context) error {
	grace := s.opts.DrainTimeout
	if s.immediate || ctx.Err() != nil {
		grace = 0
	}
	s.bus.Drain()
	if s.stopSubs != nil {
		s.stopSubs()
	}

	if grace > 0 && s.bus.Inflight() > 0 {
		dctx, cancel := context.WithTimeout(context.Background(), grace)
		for s.bus.Inflight() > 0 && !s.immediate {
			ev, err := s.bus.Next(dctx)
			if err != nil {
				s.logger.Warn("drain grace period expired", "inflight", s.bus.Inflight())
				break
			}
			s.dispatchDraining(ctx, ev)
		}
		cancel()
	}
	for {
		ev, ok := s.bus.TryNext()
		if !ok {
			break
		}
		s.dispatchDraining(ctx, ev)
	}

	err := s.flush()
	s.setPhase(PhaseStopped)
	return err
}

func (s *Scheduler) dispatchDraining(ctx context.Context, ev Event) {
	switch {
	case ev.Kind == EventAsync && ev.Job:
		s.consume(ctx, ev)
	case ev.Kind == EventShutdown && ev.Shutdown == ShutdownImmediate:
		s.immediate = true
	default:
		s.logger.Debug("dropping event while draining", "event", ev.Kind.String())
	}
}

func (s *Scheduler) dispatch(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventTimer:
		if idx, ok := s.lookup(ev.ID); ok {
			s.update(ctx, idx)
		}
	case EventAsync:
		s.consume(ctx, ev)
	case EventClick:
		s.click(ctx, ev)
	case EventRefresh:
		for i, t := range s.targets {
			if ev.Refresh.matches(t.id, t.signal) {
				s.update(ctx, i)
			}
		}
	case EventShutdown:
		s.logger.Info("shutdown requested", "reason", ev.Reason, "immediate", ev.Shutdown == ShutdownImmediate)
		s.immediate = ev.Shutdown == ShutdownImmediate
		s.setPhase(PhaseDraining)
	}
}

func (s *Scheduler) lookup(id Identity) (int, bool) {
	idx, ok := s.index[id]
	if !ok {
		s.logger.Debug("event for unknown block", "block", id.String())
	}
	return idx, ok
}

// update runs a block's Update inline, bounded by the update ceiling.
func (s *Scheduler) update(ctx context.Context, idx int) {
	sl := &s.slots[idx]
	if sl.deferred {
		if !sl.pending {
			s.logger.Info("update in flight, refreshing again when it completes", "block", sl.id.String())
		}
		sl.pending = true
		return
	}

	uctx, cancel := context.WithTimeout(ctx, s.opts.UpdateCeiling)
	start := time.Now()
	seg, err := safeCall(func() (Segment, error) { return sl.block.Update(uctx) })
	latency := time.Since(start)
	cancel()

	if latency > s.opts.UpdateCeiling {
		s.logger.Warn("block update exceeded ceiling", "block", sl.id.String(), "latency", latency)
	}

	if errors.Is(err, ErrDeferred) {
		s.markDeferred(idx)
		return
	}
	s.apply(idx, seg, err)
	s.record(idx, latency, s.wrap(idx, err))
	s.rearm(idx)
}

// consume hands an async payload to the block.
func (s *Scheduler) consume(ctx context.Context, ev Event) {
	idx, ok := s.lookup(ev.ID)
	if !ok {
		return
	}
	sl := &s.slots[idx]
	if ev.Job {
		sl.deferred = false
	}

	start := time.Now()
	var (
		seg Segment
		err = ev.Err
	)
	if err == nil {
		if c, ok := sl.block.(Consumer); ok {
			uctx, cancel := context.WithTimeout(ctx, s.opts.UpdateCeiling)
			seg, err = safeCall(func() (Segment, error) { return c.Consume(uctx, ev.Payload) })
			cancel()
		} else {
			err = ErrNoConsumer
		}
	}

	if errors.Is(err, ErrDeferred) {
		s.markDeferred(idx)
		return
	}
	s.apply(idx, seg, err)
	s.record(idx, time.Since(start), s.wrap(idx, err))
	if !ev.Job {
		return
	}
	s.rearm(idx)
	if sl.pending && s.Phase() == PhaseRunning {
		sl.pending = false
		s.update(ctx, idx)
	}
}

// click routes a click to the block named by its (name, instance).
func (s *Scheduler) click(ctx context.Context, ev Event) {
	idx, ok := s.index[ev.ID]
	if !ok {
		s.logger.Warn("click for unknown block", "block", ev.ID.String(), "button", ev.Click.Button)
		s.metrics.Click(false)
		return
	}
	s.metrics.Click(true)

	sl := &s.slots[idx]
	c, ok := sl.block.(Clicker)
	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, s.opts.UpdateCeiling)
	var changed bool
	seg, err := safeCall(func() (Segment, error) {
		seg, ch, err := c.Click(cctx, ev.Click)
		changed = ch
		return seg, err
	})
	cancel()

	switch {
	case errors.Is(err, ErrDeferred):
		s.markDeferred(idx)
	case err != nil:
		s.apply(idx, nil, err)
		s.record(idx, 0, s.wrap(idx, err))
	case changed:
		s.apply(idx, seg, nil)
	}
}

func (s *Scheduler) markDeferred(idx int) {
	s.slots[idx].deferred = true
	s.updateStatus(idx, func(st *Status) { st.Deferred = true })
}

// apply writes a block's result into its slot. Failures render the
// degraded indicator.
func (s *Scheduler) apply(idx int, seg Segment, err error) {
	sl := &s.slots[idx]
	if err != nil {
		s.logger.Warn("block update failed", "block", sl.id.String(), "error", err)
		seg = Degraded(sl.id)
	}
	if len(seg) == 0 {
		seg = Segment{{}}
	}
	sl.segment = seg
	s.dirty = true
}

func (s *Scheduler) wrap(idx int, err error) error {
	if err == nil {
		return nil
	}
	var ce *CollectionError
	if errors.As(err, &ce) {
		return ce
	}
	return &CollectionError{ID: s.slots[idx].id, Err: err}
}

func (s *Scheduler) rearm(idx int) {
	sl := &s.slots[idx]
	if iv := sl.block.Interval(); iv > 0 {
		s.bus.Arm(sl.id, iv)
	}
}

// flush writes a snapshot if the bar changed since the last one.
func (s *Scheduler) flush() error {
	if !s.dirty || s.outputDead {
		return nil
	}
	ids := make([]Identity, len(s.slots))
	segs := make([]Segment, len(s.slots))
	for i := range s.slots {
		ids[i] = s.slots[i].id
		segs[i] = s.slots[i].segment
	}

	err := s.opts.Encoder.WriteSnapshot(s.opts.Shared.Snapshot(ids, segs))
	switch {
	case err == nil:
		s.dirty = false
		s.metrics.Render()
		return nil
	case errors.Is(err, ErrProtocolEncode):
		return fmt.Errorf("render: %w", err)
	default:
		s.logger.Info("output closed, stopping", "error", err)
		s.outputDead = true
		s.immediate = true
		if s.Phase() == PhaseRunning {
			s.setPhase(PhaseDraining)
		}
		return nil
	}
}

func (s *Scheduler) startSubscribers(ctx context.Context) {
	for i := range s.slots {
		sub, ok := s.slots[i].block.(Subscriber)
		if !ok {
			continue
		}
		id := s.slots[i].id
		go func() {
			emit := func(payload any) {
				s.bus.Post(Event{Kind: EventAsync, ID: id, Payload: payload})
			}
			err := sub.Subscribe(ctx, emit)
			if err != nil && ctx.Err() == nil {
				s.bus.Post(Event{Kind: EventAsync, ID: id, Err: fmt.Errorf("subscription ended: %w", err)})
			}
		}()
	}
}

func (s *Scheduler) readClicks(ctx context.Context) {
	err := protocol.ReadClicks(ctx, s.opts.Input, s.logger, func(c protocol.ClickEvent) {
		s.bus.Post(Event{
			Kind:  EventClick,
			ID:    Identity{Name: c.Name, Instance: c.Instance},
			Click: c,
		})
	})
	if errors.Is(err, ErrIOClosed) {
		s.Shutdown(ShutdownImmediate, "click input closed")
	}
}

// safeCall runs a block callback, turning a panic into an error so one
// broken block cannot take the bar down.
func safeCall(fn func() (Segment, error)) (seg Segment, err error) {
	defer func() {
		if r := recover(); r != nil {
			seg, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
