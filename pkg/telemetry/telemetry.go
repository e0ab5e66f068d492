// Package telemetry exports scheduler metrics to Prometheus.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
)

// Noop returns a bar.Metrics that discards everything.
func Noop() bar.Metrics { return bar.NoopMetrics() }

// PrometheusMetrics implements bar.Metrics with Prometheus collectors.
type PrometheusMetrics struct {
	updates   *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	clicks    *prometheus.CounterVec
	renders   prometheus.Counter
	coalesced prometheus.Counter
}

// NewPrometheusMetrics registers the scheduler metrics with reg, or the
// default registerer when reg is nil. Collectors already registered under
// the same name are reused.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var err error
	m := &PrometheusMetrics{}
	if m.updates, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "status_pulse_block_updates_total",
		Help: "Block updates by block identity and result (ok or error).",
	}, []string{"block", "result"})); err != nil {
		return nil, err
	}
	if m.latency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "status_pulse_block_update_seconds",
		Help:    "Time spent in block update, consume and click calls.",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1},
	}, []string{"block"})); err != nil {
		return nil, err
	}
	if m.clicks, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "status_pulse_clicks_total",
		Help: "Inbound click events, by whether they matched a block.",
	}, []string{"routed"})); err != nil {
		return nil, err
	}
	if m.renders, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "status_pulse_renders_total",
		Help: "Bar snapshots written to the output.",
	})); err != nil {
		return nil, err
	}
	if m.coalesced, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "status_pulse_timer_coalesced_total",
		Help: "Timer fires dropped because one was already pending for the block.",
	})); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers c, returning the existing collector when one with the
// same descriptor is already registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

func (m *PrometheusMetrics) BlockUpdate(id bar.Identity, latency time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	block := id.String()
	m.updates.WithLabelValues(block, result).Inc()
	m.latency.WithLabelValues(block).Observe(latency.Seconds())
}

func (m *PrometheusMetrics) Click(routed bool) {
	label := "false"
	if routed {
		label = "true"
	}
	m.clicks.WithLabelValues(label).Inc()
}

func (m *PrometheusMetrics) Render()         { m.renders.Inc() }
func (m *PrometheusMetrics) TimerCoalesced() { m.coalesced.Inc() }

// Serve exposes gatherer on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("metrics listener started", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
