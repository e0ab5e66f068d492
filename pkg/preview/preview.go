// Package preview implements a protocol.Encoder that draws the bar in a
// terminal instead of speaking JSON, for trying out configurations and
// themes without a window manager.
package preview

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"
	"github.com/muesli/termenv"

	"gitlab.com/tinyland/lab/status-pulse/pkg/protocol"
	"gitlab.com/tinyland/lab/status-pulse/pkg/theme"
)

// DefaultWidth is used when the output is not a terminal.
const DefaultWidth = 120

const separator = " │ "

// Encoder renders snapshots as styled text lines.
type Encoder struct {
	mu       sync.Mutex
	w        io.Writer
	renderer *lipgloss.Renderer
	profile  termenv.Profile
	width    int
	inPlace  bool
	written  int
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithProfile forces a colour profile instead of detecting one.
func WithProfile(p termenv.Profile) Option {
	return func(e *Encoder) { e.profile = p }
}

// WithWidth forces the line width in cells.
func WithWidth(n int) Option {
	return func(e *Encoder) { e.width = n }
}

// WithInPlace redraws a single line with carriage returns instead of
// printing one line per snapshot.
func WithInPlace(v bool) Option {
	return func(e *Encoder) { e.inPlace = v }
}

// New returns an Encoder writing to w. When w is a terminal the colour
// profile and width are detected and snapshots redraw in place.
func New(w io.Writer, opts ...Option) *Encoder {
	e := &Encoder{w: w, profile: termenv.Ascii, width: DefaultWidth}
	if f, ok := w.(*os.File); ok && term.IsTerminal(f.Fd()) {
		e.profile = termenv.NewOutput(f).EnvColorProfile()
		if cols, _, err := term.GetSize(f.Fd()); err == nil && cols > 0 {
			e.width = cols
		}
		e.inPlace = true
	}
	for _, opt := range opts {
		opt(e)
	}
	e.renderer = lipgloss.NewRenderer(w)
	e.renderer.SetColorProfile(e.profile)
	return e
}

// WriteHeader prints a one-line banner.
func (e *Encoder) WriteHeader(h protocol.Header) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	clicks := "clicks disabled"
	if h.ClickEvents {
		clicks = "clicks enabled"
	}
	banner := e.renderer.NewStyle().Faint(true).
		Render(fmt.Sprintf("status-pulse preview (protocol v%d, %s)", h.Version, clicks))
	if _, err := fmt.Fprintln(e.w, banner); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// WriteSnapshot draws one bar line.
func (e *Encoder) WriteSnapshot(segments []protocol.Segment) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	line := ansi.Truncate(e.Render(segments), e.width, "…")
	var err error
	if e.inPlace {
		_, err = fmt.Fprint(e.w, "\r"+ansi.EraseEntireLine+line)
	} else {
		_, err = fmt.Fprintln(e.w, line)
	}
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	e.written++
	return nil
}

// Render returns the styled line for segments without writing it.
func (e *Encoder) Render(segments []protocol.Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		b.WriteString(e.segment(seg))
		if i == len(segments)-1 {
			continue
		}
		switch {
		case seg.Separator == nil || *seg.Separator:
			b.WriteString(e.renderer.NewStyle().Faint(true).Render(separator))
		case seg.SeparatorBlockWidth != nil:
			// Pixels; one cell per 9px as a rough equivalent.
			b.WriteString(strings.Repeat(" ", (*seg.SeparatorBlockWidth+8)/9))
		}
	}
	return b.String()
}

func (e *Encoder) segment(seg protocol.Segment) string {
	text := seg.FullText
	if seg.Markup == "pango" {
		text = stripPango(text)
	}
	if seg.MinWidth != nil && seg.MinWidth.Text != "" {
		text = pad(text, ansi.StringWidth(seg.MinWidth.Text), seg.Align)
	}

	style := e.renderer.NewStyle()
	depth := colorDepth(e.profile)
	if c := theme.AdaptColor(seg.Color, depth); c != "" {
		style = style.Foreground(lipgloss.Color(c))
	}
	if c := theme.AdaptColor(seg.Background, depth); c != "" {
		style = style.Background(lipgloss.Color(c))
	}
	if seg.Urgent {
		style = style.Bold(true).Reverse(true)
	}
	return style.Render(text)
}

// Snapshots returns how many snapshots have been drawn.
func (e *Encoder) Snapshots() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.written
}

func colorDepth(p termenv.Profile) int {
	switch p {
	case termenv.TrueColor:
		return 24
	case termenv.ANSI256:
		return 8
	case termenv.ANSI:
		return 4
	}
	return 1
}

func pad(s string, width int, align string) string {
	gap := width - ansi.StringWidth(s)
	if gap <= 0 {
		return s
	}
	switch align {
	case "right":
		return strings.Repeat(" ", gap) + s
	case "center":
		left := gap / 2
		return strings.Repeat(" ", left) + s + strings.Repeat(" ", gap-left)
	}
	return s + strings.Repeat(" ", gap)
}

// stripPango drops markup tags and decodes the entities pango requires.
func stripPango(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&amp;", "&").Replace(b.String())
}
