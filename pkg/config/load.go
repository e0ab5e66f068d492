package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultDrainTimeout bounds how long a graceful stop waits for
	// in-flight async updates.
	DefaultDrainTimeout = 2 * time.Second

	// DefaultUpdateCeiling bounds a single inline block update.
	DefaultUpdateCeiling = 500 * time.Millisecond
)

// Load reads configuration from the standard config path.
// Search order:
//  1. $XDG_CONFIG_HOME/status-pulse/config.toml
//  2. ~/.config/status-pulse/config.toml
//
// If no file exists, returns DefaultConfig().
func Load() (*Config, error) {
	paths := configSearchPaths()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return LoadFromFile(p)
		}
	}
	return DefaultConfig(), nil
}

// LoadFromFile reads configuration from a specific file path. Files ending
// in .yaml or .yml are read as YAML with the same schema; anything else is
// TOML.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, err = LoadFromYAML(f)
	default:
		cfg, err = LoadFromReader(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Source = path
	return cfg, nil
}

// LoadFromReader reads TOML configuration from an io.Reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw := rawConfig{
		General: defaultGeneral(),
		Theme:   defaultTheme(),
	}
	md, err := toml.NewDecoder(r).Decode(&raw)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown key(s): %s", strings.Join(keys, ", "))
	}

	cfg := &Config{General: raw.General, Theme: raw.Theme}
	for i, rb := range raw.Blocks {
		bc, err := splitBlock(i, rb)
		if err != nil {
			return nil, err
		}
		cfg.Blocks = append(cfg.Blocks, bc)
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromYAML reads YAML configuration. The document is re-encoded as TOML
// so both formats share one schema and one set of validation rules.
func LoadFromYAML(r io.Reader) (*Config, error) {
	var doc map[string]interface{}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if blocks, ok := doc["block"].([]interface{}); ok {
		tables := make([]map[string]interface{}, 0, len(blocks))
		for i, b := range blocks {
			m, ok := b.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("block %d: expected a mapping, got %T", i, b)
			}
			tables = append(tables, m)
		}
		doc["block"] = tables
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return nil, fmt.Errorf("convert YAML: %w", err)
	}
	return LoadFromReader(&buf)
}

// DefaultConfig returns the configuration used when no file exists: the
// default theme and the "default" block preset.
func DefaultConfig() *Config {
	cfg := &Config{
		General: defaultGeneral(),
		Theme:   defaultTheme(),
		Blocks:  BlockPreset("default"),
	}
	applyEnvOverrides(cfg)
	return cfg
}

func defaultGeneral() GeneralConfig {
	return GeneralConfig{
		LogLevel:      "info",
		DrainTimeout:  Duration{DefaultDrainTimeout},
		UpdateCeiling: Duration{DefaultUpdateCeiling},
	}
}

func defaultTheme() ThemeConfig {
	return ThemeConfig{
		Name:  "default",
		Icons: "none",
	}
}

// applyEnvOverrides checks environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STATUS_PULSE_THEME"); v != "" {
		cfg.Theme.Name = v
	}
	if v := os.Getenv("STATUS_PULSE_ICONS"); v != "" {
		cfg.Theme.Icons = v
	}
	if v := os.Getenv("STATUS_PULSE_LOG_LEVEL"); v != "" {
		cfg.General.LogLevel = v
	}
}

// configSearchPaths returns the ordered list of config file paths to try.
func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	var paths []string

	xdg := xdgConfigHome(home)
	paths = append(paths, filepath.Join(xdg, "status-pulse", "config.toml"))

	// If XDG_CONFIG_HOME was explicitly set, also try the fallback default.
	defaultXDG := filepath.Join(home, ".config")
	if xdg != defaultXDG {
		paths = append(paths, filepath.Join(defaultXDG, "status-pulse", "config.toml"))
	}

	return paths
}

// xdgConfigHome returns XDG_CONFIG_HOME or ~/.config as fallback.
func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}
