package sysmetrics

import (
	"context"
	"time"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks"
	"gitlab.com/tinyland/lab/status-pulse/pkg/config"
)

// DiskType is the configuration name of the disk block.
const DiskType = "disk"

const (
	DefaultDiskFormat   = "{path} {available}"
	DefaultDiskInterval = 60 * time.Second
)

var diskPlaceholders = []string{"path", "fstype", "total", "used", "free", "available", "used_percent"}

// DiskConfig holds the disk block keys. An empty path selects the fullest
// real partition on each update.
type DiskConfig struct {
	Path     string          `toml:"path"`
	Format   string          `toml:"format"`
	Interval config.Duration `toml:"interval"`
	MaxWidth int             `toml:"max_width"`
	Info     float64         `toml:"info"`
	Warning  float64         `toml:"warning"`
	Critical float64         `toml:"critical"`
}

// Disk shows usage for one mount point.
type Disk struct {
	path     string
	format   *blocks.Format
	interval time.Duration
	levels   thresholds

	read func(ctx context.Context, path string) (DiskMetrics, error)
}

// NewDisk is the blocks.Factory for "disk".
func NewDisk(env blocks.Env) (bar.Block, error) {
	cfg := DiskConfig{Path: "/", Format: DefaultDiskFormat, Warning: 80, Critical: 95}
	if err := env.Decode(&cfg); err != nil {
		return nil, err
	}
	f, err := blocks.ParseFormat(cfg.Format, diskPlaceholders...)
	if err != nil {
		return nil, err
	}
	return &Disk{
		path:     cfg.Path,
		format:   f.WithMaxWidth(cfg.MaxWidth),
		interval: blocks.Interval(cfg.Interval, DefaultDiskInterval),
		levels:   thresholds{cfg.Info, cfg.Warning, cfg.Critical},
		read:     readDisk,
	}, nil
}

func (d *Disk) Interval() time.Duration { return d.interval }

func (d *Disk) Update(ctx context.Context) (bar.Segment, error) {
	m, err := d.read(ctx, d.path)
	if err != nil {
		return nil, err
	}
	text := d.format.Render(map[string]string{
		"path":         m.Path,
		"fstype":       m.FSType,
		"total":        smFormatBytes(m.Total),
		"used":         smFormatBytes(m.Used),
		"free":         smFormatBytes(m.Free),
		"available":    smFormatBytes(m.Free),
		"used_percent": smFormatPercent(m.UsedPercent),
	})
	return bar.Segment{{
		Text:  text,
		Icon:  "disk",
		State: d.levels.state(m.UsedPercent),
	}}, nil
}
