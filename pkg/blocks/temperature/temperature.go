// Package temperature implements the "temperature" block: the average and
// maximum of the machine's temperature sensors, coloured by the hottest one.
package temperature

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/sensors"

	"gitlab.com/tinyland/lab/status-pulse/pkg/bar"
	"gitlab.com/tinyland/lab/status-pulse/pkg/blocks"
	"gitlab.com/tinyland/lab/status-pulse/pkg/config"
	"gitlab.com/tinyland/lab/status-pulse/pkg/protocol"
)

// Type is the configuration name of this block.
const Type = "temperature"

const (
	DefaultFormat   = "{average}° avg, {max}° max"
	DefaultInterval = 5 * time.Second
)

// Readings outside (minValid, maxValid) are treated as sensor glitches.
const (
	minValid = -101.0
	maxValid = 151.0
)

// Config holds the block-specific keys. Thresholds are inclusive upper
// bounds on the hottest reading, checked in order good, idle, info,
// warning; anything hotter is critical.
type Config struct {
	Interval  config.Duration `toml:"interval"`
	Collapsed bool            `toml:"collapsed"`
	Good      int             `toml:"good"`
	Idle      int             `toml:"idle"`
	Info      int             `toml:"info"`
	Warning   int             `toml:"warning"`
	Format    string          `toml:"format"`
	MaxWidth  int             `toml:"max_width"`
	Chip      string          `toml:"chip"`
	Inputs    []string        `toml:"inputs"`
}

// DefaultConfig returns the defaults applied before decoding.
func DefaultConfig() Config {
	return Config{
		Collapsed: true,
		Good:      20,
		Idle:      45,
		Info:      60,
		Warning:   80,
		Format:    DefaultFormat,
	}
}

// Reading is one sensor value in degrees Celsius.
type Reading struct {
	Key   string
	Value float64
}

// Temperature renders sensor readings. While collapsed only the icon is
// shown; a left click toggles.
type Temperature struct {
	cfg      Config
	format   *blocks.Format
	interval time.Duration
	inputs   []string
	log      *slog.Logger

	read func(ctx context.Context) ([]Reading, error)

	mu        sync.Mutex
	collapsed bool
	output    string
	state     bar.State
}

// New is the blocks.Factory for "temperature".
func New(env blocks.Env) (bar.Block, error) {
	cfg := DefaultConfig()
	if err := env.Decode(&cfg); err != nil {
		return nil, err
	}
	f, err := blocks.ParseFormat(cfg.Format, "average", "min", "max")
	if err != nil {
		return nil, err
	}

	t := &Temperature{
		cfg:       cfg,
		format:    f.WithMaxWidth(cfg.MaxWidth),
		interval:  blocks.Interval(cfg.Interval, DefaultInterval),
		log:       env.Log(),
		read:      readSensors,
		collapsed: cfg.Collapsed,
		state:     bar.StateIdle,
	}
	for _, in := range cfg.Inputs {
		t.inputs = append(t.inputs, normalize(in))
	}
	return t, nil
}

func readSensors(ctx context.Context) ([]Reading, error) {
	stats, err := sensors.TemperaturesWithContext(ctx)
	// Some platforms report per-sensor failures alongside valid data.
	if err != nil && len(stats) == 0 {
		return nil, err
	}
	out := make([]Reading, 0, len(stats))
	for _, s := range stats {
		out = append(out, Reading{Key: s.SensorKey, Value: s.Temperature})
	}
	return out, nil
}

// normalize maps a sensor label such as "Package id 0" to the form gopsutil
// uses in sensor keys ("package_id_0").
func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

func (t *Temperature) Interval() time.Duration { return t.interval }

// selected reports whether a sensor key passes the chip and inputs filters.
func (t *Temperature) selected(key string) bool {
	if t.cfg.Chip != "" && !strings.HasPrefix(key, t.cfg.Chip) {
		return false
	}
	if len(t.inputs) == 0 {
		return true
	}
	k := normalize(key)
	for _, in := range t.inputs {
		if k == in || strings.HasSuffix(k, "_"+in) || strings.HasSuffix(k, in+"_input") {
			return true
		}
	}
	return false
}

func (t *Temperature) Update(ctx context.Context) (bar.Segment, error) {
	readings, err := t.read(ctx)
	if err != nil {
		return nil, err
	}

	var temps []int
	for _, r := range readings {
		if !t.selected(r.Key) {
			continue
		}
		if r.Value <= minValid || r.Value >= maxValid {
			t.log.Warn("temperature outside of range [-100, 150]", "sensor", r.Key, "value", r.Value)
			continue
		}
		temps = append(temps, int(r.Value))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// No usable readings keeps the previous output.
	if len(temps) > 0 {
		lo, hi, sum := temps[0], temps[0], 0
		for _, v := range temps {
			lo = min(lo, v)
			hi = max(hi, v)
			sum += v
		}
		avg := int(math.Round(float64(sum) / float64(len(temps))))
		t.output = t.format.Render(map[string]string{
			"average": strconv.Itoa(avg),
			"min":     strconv.Itoa(lo),
			"max":     strconv.Itoa(hi),
		})
		t.state = t.stateFor(hi)
	}
	return t.render(), nil
}

func (t *Temperature) stateFor(maxTemp int) bar.State {
	switch {
	case maxTemp <= t.cfg.Good:
		return bar.StateGood
	case maxTemp <= t.cfg.Idle:
		return bar.StateIdle
	case maxTemp <= t.cfg.Info:
		return bar.StateInfo
	case maxTemp <= t.cfg.Warning:
		return bar.StateWarning
	}
	return bar.StateCritical
}

// Click toggles the collapsed view on a left click.
func (t *Temperature) Click(ctx context.Context, ev protocol.ClickEvent) (bar.Segment, bool, error) {
	if ev.Button != protocol.ButtonLeft {
		return nil, false, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.collapsed = !t.collapsed
	return t.render(), true, nil
}

func (t *Temperature) render() bar.Segment {
	p := bar.Part{Icon: "thermometer", State: t.state}
	if !t.collapsed {
		p.Text = t.output
	}
	return bar.Segment{p}
}
