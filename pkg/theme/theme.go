// Package theme provides the colour palettes and icon sets used to paint bar
// segments. A Theme maps each block state (idle, info, good, warning,
// critical) to a foreground/background pair. Empty colours mean "use the bar
// renderer's default".
package theme

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Theme defines the colours for every block state plus the separator.
type Theme struct {
	Name string

	// Separator is drawn between blocks when non-empty. An empty separator
	// leaves separation to the bar renderer.
	Separator   string
	SeparatorFG string
	SeparatorBG string

	IdleFG string
	IdleBG string

	InfoFG string
	InfoBG string

	GoodFG string
	GoodBG string

	WarningFG string
	WarningBG string

	CriticalFG string
	CriticalBG string
}

var (
	mu       sync.RWMutex
	registry = map[string]Theme{}
)

func init() {
	thRegisterBuiltins()
}

// Get returns a named theme, falling back to Default if not found.
func Get(name string) Theme {
	mu.RLock()
	defer mu.RUnlock()
	if t, ok := registry[strings.ToLower(name)]; ok {
		return t
	}
	return registry["default"]
}

// Lookup returns a named theme and whether it exists.
func Lookup(name string) (Theme, bool) {
	mu.RLock()
	defer mu.RUnlock()
	t, ok := registry[strings.ToLower(name)]
	return t, ok
}

// Names returns all available theme names sorted alphabetically.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithOverrides returns a copy of t with the given colour keys replaced.
// Keys use the TOML spelling, e.g. "idle_bg" or "critical_fg".
func WithOverrides(t Theme, overrides map[string]string) (Theme, error) {
	fields := thFields(&t)
	for key, value := range overrides {
		if key == "separator" {
			t.Separator = value
			continue
		}
		p, ok := fields[key]
		if !ok {
			return Theme{}, fmt.Errorf("theme: unknown override key %q", key)
		}
		if value != "" && !thHexColorRegex.MatchString(value) {
			return Theme{}, fmt.Errorf("theme: invalid colour %q for %q", value, key)
		}
		*p = value
	}
	return t, nil
}

// thRegister adds a theme to the registry under its lowercase name.
func thRegister(t Theme) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(t.Name)] = t
}

// thFields maps TOML-style colour keys to the fields of t.
func thFields(t *Theme) map[string]*string {
	return map[string]*string{
		"separator_fg": &t.SeparatorFG,
		"separator_bg": &t.SeparatorBG,
		"idle_fg":      &t.IdleFG,
		"idle_bg":      &t.IdleBG,
		"info_fg":      &t.InfoFG,
		"info_bg":      &t.InfoBG,
		"good_fg":      &t.GoodFG,
		"good_bg":      &t.GoodBG,
		"warning_fg":   &t.WarningFG,
		"warning_bg":   &t.WarningBG,
		"critical_fg":  &t.CriticalFG,
		"critical_bg":  &t.CriticalBG,
	}
}
