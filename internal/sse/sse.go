// Package sse consumes the Server-Sent-Events streams the backend uses to
// report per-stage progress. Each stage endpoint emits repeated progress
// frames followed by exactly one terminal result or error frame; a stream
// that closes without a terminal frame is a failure in its own right.
package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Frame is one decoded SSE event.
type Frame struct {
	Event string
	Data  []byte
}

// Decoder reads frames from an SSE byte stream, buffering partial lines
// across chunk boundaries and joining multi-line data fields.
type Decoder struct {
	reader *bufio.Reader
}

// NewDecoder wraps r for frame-by-frame reading.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReader(r)}
}

// Next returns the next complete frame. It returns io.EOF when the stream
// ends cleanly between frames; a partial frame at EOF is discarded.
func (d *Decoder) Next() (Frame, error) {
	var (
		event    string
		data     []string
		haveData bool
	)
	for {
		line, err := d.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && line == "" && !haveData && event == "" {
				return Frame{}, io.EOF
			}
			if !errors.Is(err, io.EOF) {
				return Frame{}, fmt.Errorf("read sse stream: %w", err)
			}
			// Partial trailing frame without its blank-line terminator.
			return Frame{}, io.EOF
		}

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if !haveData && event == "" {
				continue
			}
			return Frame{Event: event, Data: []byte(strings.Join(data, "\n"))}, nil
		case strings.HasPrefix(line, ":"):
			// Comment/keep-alive line.
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			value := strings.TrimPrefix(line, "data:")
			value = strings.TrimPrefix(value, " ")
			data = append(data, value)
			haveData = true
		default:
			// Unknown field names are ignored per the SSE contract.
		}
	}
}

// Progress is the payload of a progress frame.
type Progress struct {
	Step    string  `json:"step"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// ErrStreamTruncated reports a stream that closed before a terminal frame.
var ErrStreamTruncated = errors.New("sse stream closed without result or error frame")

// StageError is a terminal error frame surfaced as a Go error.
type StageError struct {
	Message string
}

func (e *StageError) Error() string {
	if e.Message == "" {
		return "stage failed"
	}
	return e.Message
}

type errorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}

// Stream drains one stage stream: progress frames invoke onProgress, a result
// frame returns its payload, an error frame returns a StageError. Frames with
// unknown events or malformed payloads are skipped. The context is checked
// between frames; callers should also bind the underlying reader to it.
func Stream(ctx context.Context, r io.Reader, onProgress func(Progress)) (json.RawMessage, error) {
	decoder := NewDecoder(r)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			return nil, ErrStreamTruncated
		}
		if err != nil {
			return nil, err
		}

		switch frame.Event {
		case "progress":
			var p Progress
			if err := json.Unmarshal(frame.Data, &p); err != nil {
				continue
			}
			if onProgress != nil {
				onProgress(p)
			}
		case "result":
			return json.RawMessage(frame.Data), nil
		case "error":
			var payload errorPayload
			_ = json.Unmarshal(frame.Data, &payload)
			message := payload.Message
			if message == "" {
				message = payload.Error
			}
			if message == "" {
				message = payload.Detail
			}
			if message == "" {
				message = strings.TrimSpace(string(frame.Data))
			}
			return nil, &StageError{Message: message}
		default:
			// Foreign frames are dropped, mirroring the realtime channel.
		}
	}
}
