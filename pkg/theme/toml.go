package theme

import (
	"bytes"
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// thTOMLTheme is the TOML-serializable representation of a Theme.
//
//	name = "mine"
//	separator = "|"
//	separator_fg = "#928374"
//	[idle]
//	fg = "#ebdbb2"
//	bg = "#282828"
//	[critical]
//	fg = "#282828"
//	bg = "#fb4934"
type thTOMLTheme struct {
	Name        string      `toml:"name"`
	Separator   string      `toml:"separator"`
	SeparatorFG string      `toml:"separator_fg"`
	SeparatorBG string      `toml:"separator_bg"`
	Idle        thTOMLState `toml:"idle"`
	Info        thTOMLState `toml:"info"`
	Good        thTOMLState `toml:"good"`
	Warning     thTOMLState `toml:"warning"`
	Critical    thTOMLState `toml:"critical"`
}

type thTOMLState struct {
	FG string `toml:"fg"`
	BG string `toml:"bg"`
}

var thHexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}([0-9a-fA-F]{2})?$`)

// LoadFromTOML parses a TOML theme definition from raw bytes.
func LoadFromTOML(data []byte) (Theme, error) {
	var tt thTOMLTheme
	md, err := toml.Decode(string(data), &tt)
	if err != nil {
		return Theme{}, fmt.Errorf("theme: parse TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Theme{}, fmt.Errorf("theme: unknown key %q", undecoded[0].String())
	}

	t := Theme{
		Name:        tt.Name,
		Separator:   tt.Separator,
		SeparatorFG: tt.SeparatorFG,
		SeparatorBG: tt.SeparatorBG,

		IdleFG: tt.Idle.FG,
		IdleBG: tt.Idle.BG,

		InfoFG: tt.Info.FG,
		InfoBG: tt.Info.BG,

		GoodFG: tt.Good.FG,
		GoodBG: tt.Good.BG,

		WarningFG: tt.Warning.FG,
		WarningBG: tt.Warning.BG,

		CriticalFG: tt.Critical.FG,
		CriticalBG: tt.Critical.BG,
	}

	if err := thValidateTheme(t); err != nil {
		return Theme{}, err
	}

	return t, nil
}

// LoadFile reads a TOML theme file.
func LoadFile(path string) (Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Theme{}, fmt.Errorf("theme: read %s: %w", path, err)
	}
	t, err := LoadFromTOML(data)
	if err != nil {
		return Theme{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// SaveToTOML serializes a theme to TOML bytes.
func SaveToTOML(t Theme) ([]byte, error) {
	tt := thTOMLTheme{
		Name:        t.Name,
		Separator:   t.Separator,
		SeparatorFG: t.SeparatorFG,
		SeparatorBG: t.SeparatorBG,
		Idle:        thTOMLState{FG: t.IdleFG, BG: t.IdleBG},
		Info:        thTOMLState{FG: t.InfoFG, BG: t.InfoBG},
		Good:        thTOMLState{FG: t.GoodFG, BG: t.GoodBG},
		Warning:     thTOMLState{FG: t.WarningFG, BG: t.WarningBG},
		Critical:    thTOMLState{FG: t.CriticalFG, BG: t.CriticalBG},
	}

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(tt); err != nil {
		return nil, fmt.Errorf("theme: encode TOML: %w", err)
	}
	return buf.Bytes(), nil
}

// thValidateTheme checks that the theme is named and every non-empty colour
// is a valid hex value.
func thValidateTheme(t Theme) error {
	if t.Name == "" {
		return fmt.Errorf("theme: missing required field %q", "name")
	}
	for field, value := range thFields(&t) {
		if value == nil || *value == "" {
			continue
		}
		if !thHexColorRegex.MatchString(*value) {
			return fmt.Errorf("theme: invalid hex color %q for field %q (expected #RRGGBB)", *value, field)
		}
	}
	return nil
}
