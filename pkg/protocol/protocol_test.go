package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestWriterHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteHeader(DefaultHeader()))

	lines := strings.Split(buf.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, `{"version":1,"click_events":true}`, lines[0])
	assert.Equal(t, "[", lines[1])
}

func TestWriterSnapshotFraming(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(DefaultHeader()))

	require.NoError(t, w.WriteSnapshot([]Segment{{FullText: "a", Name: "clock", Instance: "0"}}))
	require.NoError(t, w.WriteSnapshot([]Segment{{FullText: "b", Name: "clock", Instance: "0"}}))
	require.NoError(t, w.WriteSnapshot(nil))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, `[{"full_text":"a","name":"clock","instance":"0"}]`, lines[2])
	assert.Equal(t, `,[{"full_text":"b","name":"clock","instance":"0"}]`, lines[3])
	assert.Equal(t, `,[]`, lines[4])
	assert.Equal(t, 3, w.Snapshots())

	// The whole stream, once the array is closed, must be valid JSON.
	body := strings.Join(lines[1:], "\n") + "]"
	var parsed [][]Segment
	require.NoError(t, json.Unmarshal([]byte(body), &parsed))
	require.Len(t, parsed, 3)
}

func TestSegmentRoundTrip(t *testing.T) {
	in := Segment{
		FullText:            "42°C",
		ShortText:           "42",
		Color:               "#ffffff",
		Background:          "#cc241d",
		Border:              "#000000",
		BorderTop:           intPtr(2),
		MinWidth:            &MinWidth{Text: "100°C"},
		Align:               "center",
		Urgent:              true,
		Separator:           boolPtr(false),
		SeparatorBlockWidth: intPtr(9),
		Markup:              "pango",
		Name:                "temperature",
		Instance:            "0",
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteSnapshot([]Segment{in}))

	var out []Segment
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &out))
	require.Len(t, out, 1)
	assert.Equal(t, in, out[0])
}

func TestMinWidthPixels(t *testing.T) {
	data, err := json.Marshal(Segment{FullText: "x", MinWidth: &MinWidth{Pixels: 120}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"min_width":120`)

	var seg Segment
	require.NoError(t, json.Unmarshal(data, &seg))
	assert.Equal(t, 120, seg.MinWidth.Pixels)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriterPropagatesWriteError(t *testing.T) {
	w := NewWriter(failingWriter{})
	err := w.WriteSnapshot([]Segment{{FullText: "x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.False(t, errors.Is(err, ErrEncode))
	assert.Equal(t, 0, w.Snapshots())
}

const batteryClick = `{"name":"battery","instance":"0","button":1,"x":5,"y":5,"relative_x":2,"relative_y":2,"width":10,"height":10}`

func TestParseClickFraming(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"bare", batteryClick},
		{"leading bracket", "[" + batteryClick},
		{"leading comma", "," + batteryClick},
		{"padded", "  ,  " + batteryClick + "  "},
		{"trailing comma", batteryClick + ","},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseClick([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, ClickEvent{
				Name: "battery", Instance: "0", Button: ButtonLeft,
				X: 5, Y: 5, RelativeX: 2, RelativeY: 2, Width: 10, Height: 10,
			}, ev)
		})
	}
}

func TestParseClickEmptyAndMalformed(t *testing.T) {
	for _, line := range []string{"", "[", " , ", "]"} {
		_, err := ParseClick([]byte(line))
		assert.ErrorIs(t, err, ErrEmptyLine, "line %q", line)
	}

	for _, line := range []string{"{not json", "42", `"name"`, `{"button":"left"}`} {
		_, err := ParseClick([]byte(line))
		var de *DecodeError
		assert.ErrorAs(t, err, &de, "line %q", line)
	}
}

func TestReadClicksSkipsGarbage(t *testing.T) {
	input := strings.Join([]string{
		"[",
		batteryClick,
		"garbage{",
		"," + strings.Replace(batteryClick, `"button":1`, `"button":3`, 1),
		"",
	}, "\n")

	var got []ClickEvent
	err := ReadClicks(context.Background(), strings.NewReader(input), nil, func(ev ClickEvent) {
		got = append(got, ev)
	})
	assert.ErrorIs(t, err, ErrIOClosed)
	require.Len(t, got, 2)
	assert.Equal(t, ButtonLeft, got[0].Button)
	assert.Equal(t, ButtonRight, got[1].Button)
}

func TestReadClicksSkipsOversizedLine(t *testing.T) {
	input := "[\n" +
		strings.Repeat("x", 2*maxClickLine) + "\n" +
		"," + batteryClick + "\n" +
		"," + strings.Replace(batteryClick, `"button":1`, `"button":3`, 1)

	var got []ClickEvent
	err := ReadClicks(context.Background(), strings.NewReader(input), nil, func(ev ClickEvent) {
		got = append(got, ev)
	})
	assert.ErrorIs(t, err, ErrIOClosed)
	require.Len(t, got, 2)
	assert.Equal(t, ButtonLeft, got[0].Button)
	assert.Equal(t, ButtonRight, got[1].Button)
}

func TestReadClicksStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := ReadClicks(ctx, strings.NewReader(batteryClick+"\n"), nil, func(ClickEvent) { called = true })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
