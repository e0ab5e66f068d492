package theme

import (
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Adapt converts every colour of t for a terminal with the given colour
// depth in bits (24, 8 or 4). The theme is returned unchanged at 24 bits.
func Adapt(t Theme, colorDepth int) Theme {
	if colorDepth >= 24 {
		return t
	}
	for _, p := range thFields(&t) {
		*p = AdaptColor(*p, colorDepth)
	}
	return t
}

// AdaptColor maps a "#RRGGBB" colour to the nearest palette index for the
// colour depth: indices 16-255 at 8 bits, 0-15 below that. Empty and
// unparseable colours are returned unchanged.
func AdaptColor(hex string, colorDepth int) string {
	if colorDepth >= 24 || hex == "" {
		return hex
	}
	c, ok := thParseHex(hex)
	if !ok {
		return hex
	}
	if colorDepth >= 8 {
		// The 16 system colours are skipped; terminals redefine them.
		return strconv.Itoa(thNearest(c, 16, 256))
	}
	return strconv.Itoa(thNearest(c, 0, 16))
}

// thPalette holds the xterm default values of the 256 indexed colours.
var thPalette = thBuildPalette()

func thBuildPalette() [256]colorful.Color {
	var p [256]colorful.Color
	system := [16]string{
		"#000000", "#cd0000", "#00cd00", "#cdcd00", "#0000ee", "#cd00cd", "#00cdcd", "#e5e5e5",
		"#7f7f7f", "#ff0000", "#00ff00", "#ffff00", "#5c5cff", "#ff00ff", "#00ffff", "#ffffff",
	}
	for i, hex := range system {
		p[i], _ = colorful.Hex(hex)
	}

	levels := [6]uint8{0, 95, 135, 175, 215, 255}
	for i := 0; i < 216; i++ {
		p[16+i] = thRGB(levels[i/36], levels[(i/6)%6], levels[i%6])
	}
	for i := 0; i < 24; i++ {
		v := uint8(8 + 10*i)
		p[232+i] = thRGB(v, v, v)
	}
	return p
}

func thRGB(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// thNearest returns the index in [from, to) perceptually closest to c. Ties
// go to the lower index.
func thNearest(c colorful.Color, from, to int) int {
	best, bestDist := from, c.DistanceLab(thPalette[from])
	for i := from + 1; i < to; i++ {
		if d := c.DistanceLab(thPalette[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// thParseHex accepts "#RRGGBB", "RRGGBB" and an ignored "AA" alpha suffix.
func thParseHex(hex string) (colorful.Color, bool) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) == 8 {
		hex = hex[:6]
	}
	if len(hex) != 6 {
		return colorful.Color{}, false
	}
	c, err := colorful.Hex("#" + hex)
	if err != nil {
		return colorful.Color{}, false
	}
	return c, true
}
