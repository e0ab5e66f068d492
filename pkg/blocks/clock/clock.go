// Package clock implements the "time" block: the current date and time in
// a strftime format, optionally in another timezone.
package clock

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/strftime"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks"
	"gitlab.com/tinyland/lab/status-pulse/pkg/config"
	"gitlab.com/tinyland/lab/status-pulse/pkg/protocol"
)

// Type is the configuration name of this block.
const Type = "time"

const (
	DefaultFormat   = "%a %d/%m %R"
	DefaultInterval = 5 * time.Second
)

// Config holds the block-specific keys.
type Config struct {
	Format      string          `toml:"format"`
	ShortFormat string          `toml:"short_format"`
	Interval    config.Duration `toml:"interval"`
	Timezone    string          `toml:"timezone"`
	OnClick     string          `toml:"on_click"`
}

// Clock renders the current time.
type Clock struct {
	format   *strftime.Strftime
	short    *strftime.Strftime
	interval time.Duration
	loc      *time.Location
	onClick  string

	now func() time.Time
}

// New is the blocks.Factory for "time".
func New(env blocks.Env) (bar.Block, error) {
	cfg := Config{Format: DefaultFormat}
	if err := env.Decode(&cfg); err != nil {
		return nil, err
	}
	return newClock(cfg)
}

func newClock(cfg Config) (*Clock, error) {
	c := &Clock{
		interval: blocks.Interval(cfg.Interval, DefaultInterval),
		loc:      time.Local,
		onClick:  cfg.OnClick,
		now:      time.Now,
	}

	var err error
	if c.format, err = strftime.New(cfg.Format); err != nil {
		return nil, fmt.Errorf("format: %w", err)
	}
	if cfg.ShortFormat != "" {
		if c.short, err = strftime.New(cfg.ShortFormat); err != nil {
			return nil, fmt.Errorf("short_format: %w", err)
		}
	}
	if cfg.Timezone != "" {
		if c.loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
	}
	return c, nil
}

func (c *Clock) Interval() time.Duration { return c.interval }

func (c *Clock) Update(ctx context.Context) (bar.Segment, error) {
	t := c.now().In(c.loc)
	part := bar.Part{
		Text: c.format.FormatString(t),
		Icon: "time",
	}
	if c.short != nil {
		part.ShortText = c.short.FormatString(t)
	}
	return bar.Segment{part}, nil
}

// Click runs on_click for a left click. The segment is unchanged.
func (c *Clock) Click(ctx context.Context, ev protocol.ClickEvent) (bar.Segment, bool, error) {
	if ev.Button != protocol.ButtonLeft || c.onClick == "" {
		return nil, false, nil
	}
	if err := blocks.Spawn(c.onClick); err != nil {
		return nil, false, err
	}
	return nil, false, nil
}
