package sysmetrics

import (
	"context"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks"
	"gitlab.com/tinyland/lab/status-pulse/pkg/config"
	"gitlab.com/tinyland/lab/status-pulse/pkg/protocol"
)

// MemoryType is the configuration name of the memory block.
const MemoryType = "memory"

const (
	DefaultMemoryFormat   = "{used}/{total} ({used_percent}%)"
	DefaultSwapFormat     = "{swap_used}/{swap_total} ({swap_percent}%)"
	DefaultMemoryInterval = 5 * time.Second
)

var memoryPlaceholders = []string{
	"total", "used", "free", "available", "used_percent",
	"swap_total", "swap_used", "swap_free", "swap_percent",
}

// MemoryConfig holds the memory block keys. Thresholds apply to the percent
// of the view being shown.
type MemoryConfig struct {
	Format     string          `toml:"format"`
	FormatSwap string          `toml:"format_swap"`
	Interval   config.Duration `toml:"interval"`
	MaxWidth   int             `toml:"max_width"`
	Swap       bool            `toml:"swap"`
	Info       float64         `toml:"info"`
	Warning    float64         `toml:"warning"`
	Critical   float64         `toml:"critical"`
}

// Memory shows physical memory, or swap after a left click.
type Memory struct {
	format   *blocks.Format
	swapFmt  *blocks.Format
	interval time.Duration
	levels   thresholds

	read func(context.Context) (MemoryMetrics, error)

	mu   sync.Mutex
	swap bool
	last *MemoryMetrics
}

// NewMemory is the blocks.Factory for "memory".
func NewMemory(env blocks.Env) (bar.Block, error) {
	cfg := MemoryConfig{
		Format:     DefaultMemoryFormat,
		FormatSwap: DefaultSwapFormat,
		Warning:    80,
		Critical:   95,
	}
	if err := env.Decode(&cfg); err != nil {
		return nil, err
	}
	f, err := blocks.ParseFormat(cfg.Format, memoryPlaceholders...)
	if err != nil {
		return nil, err
	}
	sf, err := blocks.ParseFormat(cfg.FormatSwap, memoryPlaceholders...)
	if err != nil {
		return nil, err
	}
	return &Memory{
		format:   f.WithMaxWidth(cfg.MaxWidth),
		swapFmt:  sf.WithMaxWidth(cfg.MaxWidth),
		interval: blocks.Interval(cfg.Interval, DefaultMemoryInterval),
		levels:   thresholds{cfg.Info, cfg.Warning, cfg.Critical},
		read:     readMemory,
		swap:     cfg.Swap,
	}, nil
}

func (m *Memory) Interval() time.Duration { return m.interval }

func (m *Memory) Update(ctx context.Context) (bar.Segment, error) {
	metrics, err := m.read(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = &metrics
	return m.render(metrics), nil
}

// Click toggles between the memory and swap views on a left click,
// re-rendering from the last reading.
func (m *Memory) Click(ctx context.Context, ev protocol.ClickEvent) (bar.Segment, bool, error) {
	if ev.Button != protocol.ButtonLeft {
		return nil, false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swap = !m.swap
	if m.last == nil {
		return nil, false, nil
	}
	return m.render(*m.last), true, nil
}

func (m *Memory) render(metrics MemoryMetrics) bar.Segment {
	values := map[string]string{
		"total":        smFormatBytes(metrics.Total),
		"used":         smFormatBytes(metrics.Used),
		"free":         smFormatBytes(metrics.Free),
		"available":    smFormatBytes(metrics.Available),
		"used_percent": smFormatPercent(metrics.UsedPercent),
		"swap_total":   smFormatBytes(metrics.SwapTotal),
		"swap_used":    smFormatBytes(metrics.SwapUsed),
		"swap_free":    smFormatBytes(metrics.SwapTotal - metrics.SwapUsed),
		"swap_percent": smFormatPercent(metrics.SwapUsedPercent),
	}
	if m.swap {
		return bar.Segment{{
			Text:  m.swapFmt.Render(values),
			Icon:  "memory_swap",
			State: m.levels.state(metrics.SwapUsedPercent),
		}}
	}
	return bar.Segment{{
		Text:  m.format.Render(values),
		Icon:  "memory_mem",
		State: m.levels.state(metrics.UsedPercent),
	}}
}
