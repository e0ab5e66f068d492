package bar

import "gitlab.com/tinyland/lab/status-pulse/pkg/protocol"

// Render converts one part of the block id to a protocol segment, filling
// colours from the theme and prefixing the icon.
func (sh Shared) Render(id Identity, p Part) protocol.Segment {
	fg, bg := sh.Theme.StateColors(p.State.String())
	if p.Color != "" {
		fg = p.Color
	}
	if p.Background != "" {
		bg = p.Background
	}

	icon := sh.Icons.Get(p.Icon)
	seg := protocol.Segment{
		FullText:            icon + p.Text,
		Color:               fg,
		Background:          bg,
		Border:              p.Border,
		Align:               p.Align,
		Urgent:              p.Urgent,
		Markup:              p.Markup,
		Separator:           p.Separator,
		SeparatorBlockWidth: p.SeparatorBlockWidth,
		Name:                id.Name,
		Instance:            id.Instance,
	}
	if p.ShortText != "" {
		seg.ShortText = icon + p.ShortText
	}
	switch {
	case p.MinWidthText != "":
		seg.MinWidth = &protocol.MinWidth{Text: p.MinWidthText}
	case p.MinWidth > 0:
		seg.MinWidth = &protocol.MinWidth{Pixels: p.MinWidth}
	}
	if sh.Theme.Separator != "" {
		no, zero := false, 0
		seg.Separator = &no
		seg.SeparatorBlockWidth = &zero
	}
	return seg
}

// separator is the segment drawn between blocks when the theme defines a
// separator glyph. It carries no identity, so clicks on it are dropped.
func (sh Shared) separator() protocol.Segment {
	no, zero := false, 0
	return protocol.Segment{
		FullText:            sh.Theme.Separator,
		Color:               sh.Theme.SeparatorFG,
		Background:          sh.Theme.SeparatorBG,
		Separator:           &no,
		SeparatorBlockWidth: &zero,
	}
}

// Snapshot renders slots in order. Every block contributes at least one
// segment.
func (sh Shared) Snapshot(ids []Identity, segments []Segment) []protocol.Segment {
	out := make([]protocol.Segment, 0, len(ids))
	for i, id := range ids {
		if i > 0 && sh.Theme.Separator != "" {
			out = append(out, sh.separator())
		}
		seg := segments[i]
		if len(seg) == 0 {
			seg = Segment{{}}
		}
		for _, p := range seg {
			out = append(out, sh.Render(id, p))
		}
	}
	return out
}
