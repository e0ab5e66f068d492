package sysmetrics

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks"
	"gitlab.com/tinyland/lab/status-pulse/pkg/config"
)

// LoadType is the configuration name of the load block.
const LoadType = "load"

const (
	DefaultLoadFormat   = "{load1}"
	DefaultLoadInterval = 5 * time.Second
)

var loadPlaceholders = []string{"load1", "load5", "load15", "uptime"}

// LoadConfig holds the load block keys. Thresholds are per logical core and
// are scaled by the core count.
type LoadConfig struct {
	Format   string          `toml:"format"`
	Interval config.Duration `toml:"interval"`
	MaxWidth int             `toml:"max_width"`
	Info     float64         `toml:"info"`
	Warning  float64         `toml:"warning"`
	Critical float64         `toml:"critical"`
}

// Load shows the system load averages.
type Load struct {
	format   *blocks.Format
	interval time.Duration
	levels   thresholds

	read func(context.Context) (LoadMetrics, error)
}

// NewLoad is the blocks.Factory for "load".
func NewLoad(env blocks.Env) (bar.Block, error) {
	cfg := LoadConfig{Format: DefaultLoadFormat, Info: 0.3, Warning: 0.6, Critical: 0.9}
	if err := env.Decode(&cfg); err != nil {
		return nil, err
	}
	f, err := blocks.ParseFormat(cfg.Format, loadPlaceholders...)
	if err != nil {
		return nil, err
	}

	cores, err := cpu.Counts(true)
	if err != nil || cores < 1 {
		env.Log().Warn("cannot count cores, assuming one", "error", err)
		cores = 1
	}
	n := float64(cores)

	return &Load{
		format:   f.WithMaxWidth(cfg.MaxWidth),
		interval: blocks.Interval(cfg.Interval, DefaultLoadInterval),
		levels:   thresholds{cfg.Info * n, cfg.Warning * n, cfg.Critical * n},
		read:     readLoad,
	}, nil
}

func (l *Load) Interval() time.Duration { return l.interval }

func (l *Load) Update(ctx context.Context) (bar.Segment, error) {
	m, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	text := l.format.Render(map[string]string{
		"load1":  fmt.Sprintf("%.2f", m.Load1),
		"load5":  fmt.Sprintf("%.2f", m.Load5),
		"load15": fmt.Sprintf("%.2f", m.Load15),
		"uptime": smFormatUptime(m.Uptime),
	})
	return bar.Segment{{
		Text:  text,
		Icon:  "load",
		State: l.levels.state(m.Load1),
	}}, nil
}
