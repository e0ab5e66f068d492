// Package protocol implements the line-oriented JSON protocol spoken between
// status-pulse and the bar renderer (i3bar, swaybar and compatibles).
//
// Output is a header object, a literal "[" line opening an unterminated
// array, and then one JSON array of segment objects per line. Input is a
// stream of click objects, one per line, each optionally preceded by "[" or
// "," array framing.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Version is the protocol version announced in the header.
const Version = 1

var (
	// ErrEncode is returned when a header or snapshot cannot be serialized.
	// It indicates a bug: the output stream invariants can no longer be kept.
	ErrEncode = errors.New("protocol: encode failed")

	// ErrEmptyLine is returned by ParseClick for lines carrying only array
	// framing or whitespace. Readers skip these silently.
	ErrEmptyLine = errors.New("protocol: empty line")

	// ErrIOClosed is returned when the peer closed the stream.
	ErrIOClosed = errors.New("protocol: stream closed")
)

// DecodeError reports a malformed inbound click line.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: decode click %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Header is the first line written to the bar renderer.
type Header struct {
	Version     int  `json:"version"`
	ClickEvents bool `json:"click_events"`
	StopSignal  int  `json:"stop_signal,omitempty"`
	ContSignal  int  `json:"cont_signal,omitempty"`
}

// DefaultHeader returns the header status-pulse announces: version 1 with
// click events enabled.
func DefaultHeader() Header {
	return Header{Version: Version, ClickEvents: true}
}

// MinWidth is the i3bar min_width value, which is either a pixel count or a
// sample string whose rendered width is used.
type MinWidth struct {
	Pixels int
	Text   string
}

// IsZero reports whether no minimum width is set.
func (m MinWidth) IsZero() bool { return m.Pixels == 0 && m.Text == "" }

// MarshalJSON encodes the text form when set, the pixel count otherwise.
func (m MinWidth) MarshalJSON() ([]byte, error) {
	if m.Text != "" {
		return json.Marshal(m.Text)
	}
	return []byte(strconv.Itoa(m.Pixels)), nil
}

// UnmarshalJSON accepts both a number and a string.
func (m *MinWidth) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &m.Text)
	}
	return json.Unmarshal(data, &m.Pixels)
}

// Segment is one block object in a snapshot line.
type Segment struct {
	FullText            string    `json:"full_text"`
	ShortText           string    `json:"short_text,omitempty"`
	Color               string    `json:"color,omitempty"`
	Background          string    `json:"background,omitempty"`
	Border              string    `json:"border,omitempty"`
	BorderTop           *int      `json:"border_top,omitempty"`
	BorderRight         *int      `json:"border_right,omitempty"`
	BorderBottom        *int      `json:"border_bottom,omitempty"`
	BorderLeft          *int      `json:"border_left,omitempty"`
	MinWidth            *MinWidth `json:"min_width,omitempty"`
	Align               string    `json:"align,omitempty"`
	Urgent              bool      `json:"urgent,omitempty"`
	Separator           *bool     `json:"separator,omitempty"`
	SeparatorBlockWidth *int      `json:"separator_block_width,omitempty"`
	Markup              string    `json:"markup,omitempty"`
	Name                string    `json:"name"`
	Instance            string    `json:"instance"`
}

// ClickEvent is one inbound click object.
type ClickEvent struct {
	Name      string   `json:"name"`
	Instance  string   `json:"instance"`
	Button    int      `json:"button"`
	Modifiers []string `json:"modifiers,omitempty"`
	X         int      `json:"x"`
	Y         int      `json:"y"`
	RelativeX int      `json:"relative_x"`
	RelativeY int      `json:"relative_y"`
	OutputX   int      `json:"output_x,omitempty"`
	OutputY   int      `json:"output_y,omitempty"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Scale     float64  `json:"scale,omitempty"`
}

// Mouse buttons as reported by i3bar and swaybar.
const (
	ButtonLeft      = 1
	ButtonMiddle    = 2
	ButtonRight     = 3
	ButtonWheelUp   = 4
	ButtonWheelDown = 5
	ButtonBack      = 8
	ButtonForward   = 9
)
