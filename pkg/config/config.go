package config

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// MaxSignal is the largest realtime signal offset a block may use
// (SIGRTMIN+MaxSignal must stay below SIGRTMAX).
const MaxSignal = 30

// Config is the top-level status-pulse configuration.
type Config struct {
	General GeneralConfig
	Theme   ThemeConfig
	Blocks  []BlockConfig

	// Source is the file the configuration was read from, empty for
	// defaults.
	Source string
}

// GeneralConfig holds process-wide settings.
type GeneralConfig struct {
	LogLevel      string   `toml:"log_level"`
	LogFile       string   `toml:"log_file"`
	DrainTimeout  Duration `toml:"drain_timeout"`
	UpdateCeiling Duration `toml:"update_ceiling"`
	ControlSocket string   `toml:"control_socket"`
	MetricsListen string   `toml:"metrics_listen"`
}

// ThemeConfig selects the palette and icon set.
type ThemeConfig struct {
	// Name is a builtin theme name or a path to a TOML theme file.
	Name      string            `toml:"name"`
	Icons     string            `toml:"icons"`
	Overrides map[string]string `toml:"overrides"`
}

// BlockConfig is one [[block]] entry. Type, Instance and Signal are common
// to every block; everything else is left in Fields for the block's own
// constructor to decode.
type BlockConfig struct {
	Type     string
	Instance string
	Signal   int
	Fields   Fields
}

// rawConfig mirrors the file layout before block tables are split into
// common and block-specific keys.
type rawConfig struct {
	General GeneralConfig            `toml:"general"`
	Theme   ThemeConfig              `toml:"theme"`
	Blocks  []map[string]interface{} `toml:"block"`
}

// Fields holds the block-specific keys of a [[block]] table.
type Fields map[string]interface{}

// Decode decodes the fields into v, which must be a pointer to a struct
// with toml tags. Keys v does not declare are reported as errors.
func (f Fields) Decode(v interface{}) error {
	if len(f) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(map[string]interface{}(f)); err != nil {
		return fmt.Errorf("re-encode block fields: %w", err)
	}
	md, err := toml.Decode(buf.String(), v)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return fmt.Errorf("unknown key(s): %s", strings.Join(keys, ", "))
	}
	return nil
}

// splitBlock separates the common keys of a raw block table from the
// block-specific ones.
func splitBlock(i int, raw map[string]interface{}) (BlockConfig, error) {
	bc := BlockConfig{Fields: Fields{}}
	for k, v := range raw {
		switch k {
		case "block":
			s, ok := v.(string)
			if !ok {
				return bc, fmt.Errorf("block %d: \"block\" must be a string", i)
			}
			bc.Type = s
		case "instance":
			bc.Instance = fmt.Sprint(v)
		case "signal":
			n, err := toInt(v)
			if err != nil {
				return bc, fmt.Errorf("block %d: signal: %w", i, err)
			}
			bc.Signal = n
		default:
			bc.Fields[k] = v
		}
	}
	return bc, nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}

// Validate checks the configuration and assigns default instances. A block
// without an explicit instance gets its ordinal among blocks of the same
// type ("0", "1", ...).
func (c *Config) Validate() error {
	if len(c.Blocks) == 0 {
		return fmt.Errorf("no blocks configured")
	}
	if c.General.DrainTimeout.Duration < 0 || c.General.UpdateCeiling.Duration < 0 {
		return fmt.Errorf("general: durations must not be negative")
	}
	switch strings.ToLower(c.General.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("general: unknown log_level %q", c.General.LogLevel)
	}

	// Implicit instances count up per type and skip any value a block of
	// that type names explicitly.
	explicit := make(map[string]bool)
	for _, b := range c.Blocks {
		if b.Instance != "" {
			explicit[b.Type+"/"+b.Instance] = true
		}
	}
	ordinals := make(map[string]int)
	seen := make(map[string]int)
	for i := range c.Blocks {
		b := &c.Blocks[i]
		if b.Type == "" {
			return fmt.Errorf("block %d: missing \"block\" type", i)
		}
		if b.Signal < 0 || b.Signal > MaxSignal {
			return fmt.Errorf("block %d (%s): signal %d out of range 0..%d", i, b.Type, b.Signal, MaxSignal)
		}
		if b.Instance == "" {
			n := ordinals[b.Type]
			for explicit[b.Type+"/"+strconv.Itoa(n)] {
				n++
			}
			b.Instance = strconv.Itoa(n)
			ordinals[b.Type] = n + 1
		}

		key := b.Type + "/" + b.Instance
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("block %d: duplicate identity %s (first used by block %d)", i, key, prev)
		}
		seen[key] = i
	}
	return nil
}

// DrainTimeoutOrDefault returns the configured grace period or the default.
func (g GeneralConfig) DrainTimeoutOrDefault() time.Duration {
	if g.DrainTimeout.Duration > 0 {
		return g.DrainTimeout.Duration
	}
	return DefaultDrainTimeout
}

// UpdateCeilingOrDefault returns the inline update ceiling or the default.
func (g GeneralConfig) UpdateCeilingOrDefault() time.Duration {
	if g.UpdateCeiling.Duration > 0 {
		return g.UpdateCeiling.Duration
	}
	return DefaultUpdateCeiling
}
