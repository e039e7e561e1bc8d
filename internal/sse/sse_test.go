package sse_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"reelpipe/internal/sse"
)

// chunkReader yields input in tiny chunks to exercise partial-line buffering.
type chunkReader struct {
	data []byte
	pos  int
	size int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}
	end := c.pos + c.size
	if end > len(c.data) {
		end = len(c.data)
	}
	n := copy(p, c.data[c.pos:end])
	c.pos += n
	return n, nil
}

func TestDecoderAcrossChunkBoundaries(t *testing.T) {
	raw := "event: progress\ndata: {\"step\":\"voice\",\"percent\":40}\n\nevent: result\ndata: {\"ok\":true}\n\n"
	decoder := sse.NewDecoder(&chunkReader{data: []byte(raw), size: 3})

	first, err := decoder.Next()
	if err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if first.Event != "progress" || !strings.Contains(string(first.Data), "voice") {
		t.Fatalf("unexpected first frame: %+v", first)
	}

	second, err := decoder.Next()
	if err != nil {
		t.Fatalf("second frame: %v", err)
	}
	if second.Event != "result" {
		t.Fatalf("unexpected second frame: %+v", second)
	}

	if _, err := decoder.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after last frame, got %v", err)
	}
}

func TestDecoderMultiLineDataAndComments(t *testing.T) {
	raw := ": keep-alive\nevent: result\ndata: line one\ndata: line two\n\n"
	decoder := sse.NewDecoder(strings.NewReader(raw))

	frame, err := decoder.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(frame.Data) != "line one\nline two" {
		t.Fatalf("multi-line data joined incorrectly: %q", frame.Data)
	}
}

func TestStreamProgressThenResult(t *testing.T) {
	raw := strings.Join([]string{
		"event: progress",
		`data: {"step":"voice","percent":10,"message":"starting"}`,
		"",
		"event: progress",
		`data: {"step":"voice","percent":90,"message":"almost"}`,
		"",
		"event: result",
		`data: {"files":["a.mp3"]}`,
		"",
	}, "\n")

	var seen []sse.Progress
	result, err := sse.Stream(context.Background(), strings.NewReader(raw), func(p sse.Progress) {
		seen = append(seen, p)
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(seen) != 2 || seen[1].Percent != 90 {
		t.Fatalf("unexpected progress frames: %+v", seen)
	}
	if !strings.Contains(string(result), "a.mp3") {
		t.Fatalf("unexpected result payload: %s", result)
	}
}

func TestStreamErrorFrame(t *testing.T) {
	raw := "event: error\ndata: {\"message\":\"TTS failed\"}\n\n"
	_, err := sse.Stream(context.Background(), strings.NewReader(raw), nil)

	var stageErr *sse.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if stageErr.Message != "TTS failed" {
		t.Fatalf("unexpected message: %q", stageErr.Message)
	}
}

func TestStreamTruncated(t *testing.T) {
	raw := "event: progress\ndata: {\"percent\":50}\n\n"
	_, err := sse.Stream(context.Background(), strings.NewReader(raw), nil)
	if !errors.Is(err, sse.ErrStreamTruncated) {
		t.Fatalf("expected ErrStreamTruncated, got %v", err)
	}
}

func TestStreamSkipsMalformedProgress(t *testing.T) {
	raw := "event: progress\ndata: not-json\n\nevent: result\ndata: {}\n\n"
	calls := 0
	_, err := sse.Stream(context.Background(), strings.NewReader(raw), func(sse.Progress) { calls++ })
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if calls != 0 {
		t.Fatalf("malformed progress should be dropped, got %d callbacks", calls)
	}
}

func TestStreamHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sse.Stream(ctx, strings.NewReader(""), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
