package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Encoder serializes bar snapshots to an output stream.
type Encoder interface {
	// WriteHeader performs the protocol handshake. It is called exactly once,
	// before any snapshot.
	WriteHeader(h Header) error

	// WriteSnapshot writes the complete bar as a single line.
	WriteSnapshot(segments []Segment) error
}

// Writer is the i3bar JSON Encoder. Each call results in exactly one Write
// on the underlying stream so a line is never split across writes.
type Writer struct {
	mu        sync.Mutex
	w         io.Writer
	buf       bytes.Buffer
	snapshots int
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader writes the header object followed by the "[" line that opens
// the infinite snapshot array.
func (e *Writer) WriteHeader(h Header) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("%w: header: %v", ErrEncode, err)
	}
	e.buf.Reset()
	e.buf.Write(data)
	e.buf.WriteString("\n[\n")
	if _, err := e.w.Write(e.buf.Bytes()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// WriteSnapshot writes one snapshot line. The first snapshot is written bare
// so the stream stays a valid JSON prefix; later ones are prefixed with ",".
func (e *Writer) WriteSnapshot(segments []Segment) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if segments == nil {
		segments = []Segment{}
	}
	data, err := json.Marshal(segments)
	if err != nil {
		return fmt.Errorf("%w: snapshot: %v", ErrEncode, err)
	}
	e.buf.Reset()
	if e.snapshots > 0 {
		e.buf.WriteByte(',')
	}
	e.buf.Write(data)
	e.buf.WriteByte('\n')
	if _, err := e.w.Write(e.buf.Bytes()); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	e.snapshots++
	return nil
}

// Snapshots returns how many snapshot lines have been written.
func (e *Writer) Snapshots() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshots
}
