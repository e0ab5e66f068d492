package theme

import (
	"fmt"
	"sort"
)

// Icons maps icon names used by blocks to the glyphs of an icon font.
// Missing names resolve to the empty string.
type Icons map[string]string

// Get returns the glyph for name followed by a space, or "" when the set has
// no glyph for it.
func (i Icons) Get(name string) string {
	if name == "" {
		return ""
	}
	if g, ok := i[name]; ok && g != "" {
		return g + " "
	}
	return ""
}

var iconSets = map[string]Icons{
	"none": {},
	"awesome": {
		"time":        "",
		"thermometer": "",
		"cpu":         "",
		"memory_mem":  "",
		"memory_swap": "",
		"load":        "",
		"disk":        "",
		"net":         "\uf0e8",
		"tailscale":   "",
		"kube":        "",
		"update":      "",
		"error":       "",
	},
	"material": {
		"time":        "\U000F0954",
		"thermometer": "\U000F050F",
		"cpu":         "\U000F035B",
		"memory_mem":  "\U000F035B",
		"memory_swap": "\U000F0A07",
		"load":        "\U000F04C5",
		"disk":        "\U000F02CA",
		"net":         "\U000F0200",
		"tailscale":   "\U000F0582",
		"kube":        "\U000F10FE",
		"update":      "\U000F06B0",
		"error":       "\U000F0026",
	},
}

// IconSet returns a copy of the named icon set.
func IconSet(name string) (Icons, error) {
	set, ok := iconSets[name]
	if !ok {
		return nil, fmt.Errorf("theme: unknown icon set %q (available: %v)", name, IconSetNames())
	}
	out := make(Icons, len(set))
	for k, v := range set {
		out[k] = v
	}
	return out, nil
}

// IconSetNames returns the built-in icon set names sorted alphabetically.
func IconSetNames() []string {
	names := make([]string, 0, len(iconSets))
	for name := range iconSets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
