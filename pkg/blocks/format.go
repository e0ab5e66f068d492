package blocks

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Format is a parsed block format string. Placeholders are written {name}
// or {name:N}, where N pads the value on the left to N cells. "{{" and
// "}}" produce literal braces. Placeholders are checked against the
// block's known names when the format is parsed, so typos fail at startup.
type Format struct {
	src      string
	parts    []formatPart
	maxWidth int
}

type formatPart struct {
	text  string
	key   string
	width int
}

// ParseFormat parses src, accepting only the given placeholder names.
func ParseFormat(src string, names ...string) (*Format, error) {
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	f := &Format{src: src}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			f.parts = append(f.parts, formatPart{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '{' && i+1 < len(src) && src[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(src) && src[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(src[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("format %q: unclosed placeholder at offset %d", src, i)
			}
			key, width, err := parsePlaceholder(src[i+1 : i+end])
			if err != nil {
				return nil, fmt.Errorf("format %q: %w", src, err)
			}
			if !known[key] {
				return nil, fmt.Errorf("format %q: unknown placeholder {%s} (available: %s)", src, key, strings.Join(names, ", "))
			}
			flush()
			f.parts = append(f.parts, formatPart{key: key, width: width})
			i += end
		case c == '}':
			return nil, fmt.Errorf("format %q: unmatched '}' at offset %d", src, i)
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return f, nil
}

// MustFormat is ParseFormat for compiled-in defaults; it panics on error.
func MustFormat(src string, names ...string) *Format {
	f, err := ParseFormat(src, names...)
	if err != nil {
		panic(err)
	}
	return f
}

func parsePlaceholder(s string) (string, int, error) {
	key, w, hasWidth := strings.Cut(s, ":")
	key = strings.TrimSpace(key)
	if key == "" {
		return "", 0, fmt.Errorf("empty placeholder")
	}
	if !hasWidth {
		return key, 0, nil
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width < 0 {
		return "", 0, fmt.Errorf("placeholder {%s}: bad width %q", key, w)
	}
	return key, width, nil
}

// WithMaxWidth returns a copy of f that truncates its output to n cells
// with a trailing ellipsis. Zero disables truncation.
func (f *Format) WithMaxWidth(n int) *Format {
	c := *f
	c.maxWidth = n
	return &c
}

// Has reports whether the format uses placeholder key.
func (f *Format) Has(key string) bool {
	for _, p := range f.parts {
		if p.key == key {
			return true
		}
	}
	return false
}

func (f *Format) String() string { return f.src }

// Render substitutes values. Missing values render empty.
func (f *Format) Render(values map[string]string) string {
	var b strings.Builder
	for _, p := range f.parts {
		if p.key == "" {
			b.WriteString(p.text)
			continue
		}
		v := values[p.key]
		if p.width > 0 {
			v = PadLeft(v, p.width)
		}
		b.WriteString(v)
	}
	return Truncate(b.String(), f.maxWidth)
}

// VisibleLen returns the visible width of s in terminal cells.
func VisibleLen(s string) int {
	return ansi.StringWidth(s)
}

// Truncate shortens s to at most maxWidth cells, ending in "…" when cut.
// A non-positive maxWidth leaves s unchanged.
func Truncate(s string, maxWidth int) string {
	if maxWidth <= 0 || VisibleLen(s) <= maxWidth {
		return s
	}
	return ansi.Truncate(s, maxWidth, "…")
}

// PadLeft pads s with leading spaces so that its visible width equals
// width. If s is already wider than width, it is returned unchanged.
func PadLeft(s string, width int) string {
	vis := VisibleLen(s)
	if vis >= width {
		return s
	}
	return strings.Repeat(" ", width-vis) + s
}
