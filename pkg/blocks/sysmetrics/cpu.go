package sysmetrics

import (
	"context"
	"strconv"
	"time"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks"
	"gitlab.com/tinyland/lab/status-pulse/pkg/config"
)

// CPUType is the configuration name of the cpu block.
const CPUType = "cpu"

const (
	DefaultCPUFormat   = "{utilization}%"
	DefaultCPUInterval = 2 * time.Second
)

var cpuPlaceholders = []string{"utilization", "count", "barchart"}

// CPUConfig holds the cpu block keys. Thresholds are utilisation percents.
type CPUConfig struct {
	Format   string          `toml:"format"`
	Interval config.Duration `toml:"interval"`
	MaxWidth int             `toml:"max_width"`
	Info     float64         `toml:"info"`
	Warning  float64         `toml:"warning"`
	Critical float64         `toml:"critical"`
}

// CPU shows aggregate utilisation.
type CPU struct {
	format   *blocks.Format
	interval time.Duration
	levels   thresholds

	read func(context.Context) (CPUMetrics, error)
}

// NewCPU is the blocks.Factory for "cpu".
func NewCPU(env blocks.Env) (bar.Block, error) {
	cfg := CPUConfig{Format: DefaultCPUFormat, Info: 30, Warning: 60, Critical: 90}
	if err := env.Decode(&cfg); err != nil {
		return nil, err
	}
	f, err := blocks.ParseFormat(cfg.Format, cpuPlaceholders...)
	if err != nil {
		return nil, err
	}
	return &CPU{
		format:   f.WithMaxWidth(cfg.MaxWidth),
		interval: blocks.Interval(cfg.Interval, DefaultCPUInterval),
		levels:   thresholds{cfg.Info, cfg.Warning, cfg.Critical},
		read:     readCPU,
	}, nil
}

func (c *CPU) Interval() time.Duration { return c.interval }

func (c *CPU) Update(ctx context.Context) (bar.Segment, error) {
	m, err := c.read(ctx)
	if err != nil {
		return nil, err
	}
	values := map[string]string{
		"utilization": smFormatPercent(m.Total),
		"count":       strconv.Itoa(len(m.Cores)),
	}
	if c.format.Has("barchart") {
		values["barchart"] = smBarchart(m.Cores)
	}
	return bar.Segment{{
		Text:  c.format.Render(values),
		Icon:  "cpu",
		State: c.levels.state(m.Total),
	}}, nil
}
