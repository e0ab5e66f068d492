package theme

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// --- Get / Lookup / Names ---

func TestGetDefault(t *testing.T) {
	th := Get("default")
	if th.Name != "default" {
		t.Errorf("Get(\"default\").Name = %q, want %q", th.Name, "default")
	}
	if th.IdleBG != "" {
		t.Errorf("default theme IdleBG = %q, want empty", th.IdleBG)
	}
	if th.CriticalFG != "#e06c75" {
		t.Errorf("default theme CriticalFG = %q, want %q", th.CriticalFG, "#e06c75")
	}
}

func TestGetGruvbox(t *testing.T) {
	th := Get("GRUVBOX")
	if th.Name != "gruvbox" {
		t.Errorf("Get(\"GRUVBOX\").Name = %q, want %q", th.Name, "gruvbox")
	}
	if th.IdleBG != "#282828" {
		t.Errorf("gruvbox IdleBG = %q, want %q", th.IdleBG, "#282828")
	}
	if th.CriticalBG != "#fb4934" {
		t.Errorf("gruvbox CriticalBG = %q, want %q", th.CriticalBG, "#fb4934")
	}
}

func TestGetUnknownFallsBackToDefault(t *testing.T) {
	th := Get("unknown-theme-xyz")
	if th.Name != "default" {
		t.Errorf("Get(\"unknown\") = %q, want default", th.Name)
	}
	if _, ok := Lookup("unknown-theme-xyz"); ok {
		t.Error("Lookup should report unknown themes as missing")
	}
}

func TestNames(t *testing.T) {
	names := Names()
	expected := []string{"catppuccin", "default", "dracula", "gruvbox", "nord", "tokyo-night"}
	sort.Strings(expected)
	if len(names) != len(expected) {
		t.Fatalf("Names() returned %d themes, want %d", len(names), len(expected))
	}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], name)
		}
	}
}

func TestAllThemesValidate(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			if err := thValidateTheme(Get(name)); err != nil {
				t.Errorf("builtin theme %q invalid: %v", name, err)
			}
		})
	}
}

// --- StateColors ---

func TestStateColors(t *testing.T) {
	th := Get("nord")
	tests := []struct {
		state  string
		fg, bg string
	}{
		{"idle", th.IdleFG, th.IdleBG},
		{"info", th.InfoFG, th.InfoBG},
		{"good", th.GoodFG, th.GoodBG},
		{"ok", th.GoodFG, th.GoodBG},
		{"warning", th.WarningFG, th.WarningBG},
		{"critical", th.CriticalFG, th.CriticalBG},
		{"error", th.CriticalFG, th.CriticalBG},
		{"bogus", th.IdleFG, th.IdleBG},
	}
	for _, tt := range tests {
		fg, bg := th.StateColors(tt.state)
		if fg != tt.fg || bg != tt.bg {
			t.Errorf("StateColors(%q) = (%q, %q), want (%q, %q)", tt.state, fg, bg, tt.fg, tt.bg)
		}
	}
}

// --- Overrides ---

func TestWithOverrides(t *testing.T) {
	th, err := WithOverrides(Get("default"), map[string]string{
		"idle_bg":   "#101010",
		"separator": "|",
	})
	if err != nil {
		t.Fatalf("WithOverrides: %v", err)
	}
	if th.IdleBG != "#101010" {
		t.Errorf("IdleBG = %q, want %q", th.IdleBG, "#101010")
	}
	if th.Separator != "|" {
		t.Errorf("Separator = %q, want %q", th.Separator, "|")
	}
	if Get("default").IdleBG != "" {
		t.Error("WithOverrides must not mutate the registered theme")
	}
}

func TestWithOverridesRejectsBadInput(t *testing.T) {
	if _, err := WithOverrides(Get("default"), map[string]string{"nope": "#000000"}); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, err := WithOverrides(Get("default"), map[string]string{"good_fg": "green"}); err == nil {
		t.Error("expected error for non-hex colour")
	}
}

// --- colour depth fallback ---

func TestAdaptColor256(t *testing.T) {
	tests := []struct {
		hex  string
		want string
	}{
		{"#ff0000", "196"},
		{"#00ff00", "46"},
		{"#0000ff", "21"},
		{"#808080", "244"},
		{"#000000", "16"},
		{"#ffffff", "231"},
		{"#FF0000", "196"},
		{"ff0000", "196"},
		{"#ff000080", "196"},
		{"#fe0101", "196"},
		{"not-a-colour", "not-a-colour"},
		{"#12345", "#12345"},
	}
	for _, tt := range tests {
		if got := AdaptColor(tt.hex, 8); got != tt.want {
			t.Errorf("AdaptColor(%q, 8) = %q, want %q", tt.hex, got, tt.want)
		}
	}
}

func TestAdaptColor16(t *testing.T) {
	tests := []struct {
		hex  string
		want string
	}{
		{"#000000", "0"},
		{"#ff0000", "9"},
		{"#cd0000", "1"},
		{"#ffffff", "15"},
		{"#7f7f7f", "8"},
		{"#00ffff", "14"},
	}
	for _, tt := range tests {
		if got := AdaptColor(tt.hex, 4); got != tt.want {
			t.Errorf("AdaptColor(%q, 4) = %q, want %q", tt.hex, got, tt.want)
		}
	}
}

func TestPaletteLayout(t *testing.T) {
	tests := []struct {
		idx int
		hex string
	}{
		{16, "#000000"},
		{21, "#0000ff"},
		{196, "#ff0000"},
		{231, "#ffffff"},
		{232, "#080808"},
		{255, "#eeeeee"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.idx), func(t *testing.T) {
			if got := thPalette[tt.idx].Hex(); got != tt.hex {
				t.Errorf("thPalette[%d] = %s, want %s", tt.idx, got, tt.hex)
			}
		})
	}
}

func TestAdaptConvertsColors(t *testing.T) {
	adapted := Adapt(Get("gruvbox"), 8)
	for key, p := range thFields(&adapted) {
		if strings.HasPrefix(*p, "#") {
			t.Errorf("Adapt with colorDepth=8 left %s as %q", key, *p)
		}
	}
}

func TestAdaptPreservesAt24Bit(t *testing.T) {
	th := Get("gruvbox")
	if adapted := Adapt(th, 24); adapted != th {
		t.Errorf("Adapt(24bit) changed the theme: %+v", adapted)
	}
	if got := AdaptColor("#ff0000", 24); got != "#ff0000" {
		t.Errorf("AdaptColor(24bit) = %q", got)
	}
	if got := AdaptColor("", 8); got != "" {
		t.Errorf("AdaptColor(empty) = %q, want empty", got)
	}
}

// --- TOML loading/saving ---

const thTestTOML = `
name = "custom"
separator = "|"

[idle]
fg = "#eeeeee"
bg = "#111111"

[critical]
fg = "#111111"
bg = "#ff0000"
`

func TestLoadFromTOMLValid(t *testing.T) {
	th, err := LoadFromTOML([]byte(thTestTOML))
	if err != nil {
		t.Fatalf("LoadFromTOML: %v", err)
	}
	if th.Name != "custom" || th.Separator != "|" {
		t.Errorf("unexpected header fields: %+v", th)
	}
	if th.IdleBG != "#111111" || th.CriticalBG != "#ff0000" {
		t.Errorf("unexpected colours: %+v", th)
	}
	if th.GoodFG != "" {
		t.Errorf("unset state should stay empty, got %q", th.GoodFG)
	}
}

func TestLoadFromTOMLErrors(t *testing.T) {
	tests := map[string]string{
		"missing name": `[idle]
fg = "#eeeeee"`,
		"bad hex": `name = "x"
[good]
fg = "green"`,
		"unknown key": `name = "x"
[idle]
colour = "#eeeeee"`,
		"syntax": `name = `,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadFromTOML([]byte(data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mine.toml")
	if err := os.WriteFile(path, []byte(thTestTOML), 0o644); err != nil {
		t.Fatal(err)
	}
	th, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if th.Name != "custom" {
		t.Errorf("Name = %q, want custom", th.Name)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveToTOMLRoundtrip(t *testing.T) {
	orig := Get("dracula")
	data, err := SaveToTOML(orig)
	if err != nil {
		t.Fatalf("SaveToTOML: %v", err)
	}
	back, err := LoadFromTOML(data)
	if err != nil {
		t.Fatalf("LoadFromTOML(SaveToTOML()): %v", err)
	}
	if back != orig {
		t.Errorf("roundtrip mismatch:\n got %+v\nwant %+v", back, orig)
	}
}

// --- Icons ---

func TestIconSets(t *testing.T) {
	none, err := IconSet("none")
	if err != nil {
		t.Fatalf("IconSet(none): %v", err)
	}
	if got := none.Get("time"); got != "" {
		t.Errorf("none.Get(time) = %q, want empty", got)
	}

	awesome, err := IconSet("awesome")
	if err != nil {
		t.Fatalf("IconSet(awesome): %v", err)
	}
	if got := awesome.Get("time"); got == "" || !strings.HasSuffix(got, " ") {
		t.Errorf("awesome.Get(time) = %q, want glyph plus space", got)
	}
	if got := awesome.Get("no-such-icon"); got != "" {
		t.Errorf("missing icon = %q, want empty", got)
	}

	if _, err := IconSet("emoji"); err == nil {
		t.Error("expected error for unknown icon set")
	}
}
