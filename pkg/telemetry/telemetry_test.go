package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
)

var clock = bar.Identity{Name: "time", Instance: "0"}

func TestNoop(t *testing.T) {
	m := Noop()
	require.NotNil(t, m)
	m.BlockUpdate(clock, time.Millisecond, nil)
	m.Click(true)
	m.Render()
	m.TimerCoalesced()
}

func TestPrometheusMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(reg)
	require.NoError(t, err)

	m.BlockUpdate(clock, 2*time.Millisecond, nil)
	m.BlockUpdate(clock, 3*time.Millisecond, nil)
	m.BlockUpdate(clock, time.Millisecond, errors.New("boom"))
	m.Click(true)
	m.Click(false)
	m.Click(false)
	m.Render()
	m.TimerCoalesced()
	m.TimerCoalesced()

	require.Equal(t, 2.0, testutil.ToFloat64(m.updates.WithLabelValues("time/0", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.updates.WithLabelValues("time/0", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.clicks.WithLabelValues("true")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.clicks.WithLabelValues("false")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.renders))
	require.Equal(t, 2.0, testutil.ToFloat64(m.coalesced))

	families, err := reg.Gather()
	require.NoError(t, err)
	hist := findFamily(t, families, "status_pulse_block_update_seconds")
	require.Len(t, hist.Metric, 1)
	require.Equal(t, uint64(3), hist.Metric[0].GetHistogram().GetSampleCount())
}

func TestPrometheusMetricsReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheusMetrics(reg)
	require.NoError(t, err)
	again, err := NewPrometheusMetrics(reg)
	require.NoError(t, err)
	require.Same(t, first.updates, again.updates)

	again.Render()
	first.Render()
	require.Equal(t, 2.0, testutil.ToFloat64(first.renders))
}

func TestServe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(reg)
	require.NoError(t, err)
	m.Render()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, addr, reg, slog.New(slog.NewTextHandler(io.Discard, nil))) }()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body = string(b)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	require.True(t, strings.Contains(body, "status_pulse_renders_total 1"), body)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func findFamily(t *testing.T, families []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric family %s not gathered", name)
	return nil
}
