package protocol

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// maxClickLine bounds a single inbound line. Click objects are a few hundred
// bytes; anything near this size is garbage.
const maxClickLine = 1 << 20

// ParseClick decodes one inbound line. Leading "[" and "," framing and a
// trailing "," are stripped. Lines with nothing left return ErrEmptyLine;
// anything that is not a JSON object returns a *DecodeError.
func ParseClick(line []byte) (ClickEvent, error) {
	b := bytes.TrimSpace(line)
	for len(b) > 0 && (b[0] == '[' || b[0] == ',') {
		b = bytes.TrimSpace(b[1:])
	}
	for len(b) > 0 && (b[len(b)-1] == ',' || b[len(b)-1] == ']') {
		b = bytes.TrimSpace(b[:len(b)-1])
	}
	if len(b) == 0 {
		return ClickEvent{}, ErrEmptyLine
	}
	if b[0] != '{' {
		return ClickEvent{}, &DecodeError{Line: string(line), Err: errors.New("not an object")}
	}

	var ev ClickEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return ClickEvent{}, &DecodeError{Line: string(line), Err: err}
	}
	return ev, nil
}

// ReadClicks reads r line by line and hands every decoded click to fn.
// Empty, malformed and oversized lines are skipped. It returns ErrIOClosed
// (possibly wrapping a read error) when the stream ends, or ctx.Err() if
// ctx is cancelled between lines.
func ReadClicks(ctx context.Context, r io.Reader, logger *slog.Logger, fn func(ClickEvent)) error {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	br := bufio.NewReaderSize(r, 4096)
	var (
		line     []byte
		overflow bool
	)
	for {
		chunk, err := br.ReadSlice('\n')
		if !overflow {
			if len(line)+len(chunk) > maxClickLine {
				overflow = true
				line = line[:0]
			} else {
				line = append(line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		complete := len(chunk) > 0 && chunk[len(chunk)-1] == '\n'
		if complete || (err != nil && len(line) > 0) {
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			if overflow {
				logger.Debug("skipping oversized click line", "limit", maxClickLine)
			} else {
				dispatchClick(line, logger, fn)
			}
			line, overflow = line[:0], false
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrIOClosed
			}
			return fmt.Errorf("%w: %v", ErrIOClosed, err)
		}
	}
}

func dispatchClick(line []byte, logger *slog.Logger, fn func(ClickEvent)) {
	ev, err := ParseClick(line)
	if err != nil {
		if !errors.Is(err, ErrEmptyLine) {
			logger.Debug("skipping malformed click line", "error", err)
		}
		return
	}
	fn(ev)
}
