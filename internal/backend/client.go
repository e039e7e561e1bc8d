package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"reelpipe/internal/config"
	"reelpipe/internal/logging"
	"reelpipe/internal/sse"
	"reelpipe/internal/stage"
)

// Kind classifies client failures for retry decisions.
type Kind string

const (
	// KindTransport covers network errors before a response arrived.
	KindTransport Kind = "transport"
	// KindAPI covers non-success HTTP responses.
	KindAPI Kind = "api"
	// KindStage covers stage failures reported inside a stream.
	KindStage Kind = "stage"
	// KindDecode covers malformed stage results.
	KindDecode Kind = "decode"
)

// Error is the client's failure type.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a failure is worth retrying: transport errors,
// truncated streams, and server-side HTTP failures. Stage errors and client
// mistakes are not.
func IsRetryable(err error) bool {
	if errors.Is(err, sse.ErrStreamTruncated) {
		return true
	}
	var clientErr *Error
	if !errors.As(err, &clientErr) {
		return false
	}
	switch clientErr.Kind {
	case KindTransport:
		return true
	case KindAPI:
		return clientErr.Status >= 500 || clientErr.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// ProgressFunc receives progress frames while a stage runs.
type ProgressFunc func(sse.Progress)

// Client talks to the production backend.
type Client struct {
	baseURL  string
	apiToken string
	// plain has a request timeout; stream does not, stage calls can run for
	// minutes and are bounded by their context instead.
	plain  *http.Client
	stream *http.Client
	logger *slog.Logger
}

// New builds a client from the backend configuration.
func New(cfg config.Backend, logger *slog.Logger) *Client {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiToken: cfg.APIToken,
		plain:    &http.Client{Timeout: timeout},
		stream:   &http.Client{},
		logger:   logging.NewComponentLogger(logger, "backend"),
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	return req, nil
}

// runStage POSTs the stage payload and consumes the SSE response until its
// terminal frame, returning the raw result payload.
func (c *Client) runStage(ctx context.Context, st stage.Name, in StageInput, onProgress ProgressFunc) (json.RawMessage, error) {
	op := "stage " + string(st)
	path, ok := stagePaths[st]
	if !ok {
		return nil, &Error{Kind: KindDecode, Op: op, Message: "no endpoint for stage"}
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, in)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Kind: KindAPI, Op: op, Status: resp.StatusCode, Message: readErrorBody(resp.Body)}
	}

	c.logger.Debug("stage stream open",
		logging.String(logging.FieldStage, string(st)))

	result, err := sse.Stream(ctx, resp.Body, func(p sse.Progress) {
		if onProgress != nil {
			onProgress(p)
		}
	})
	if err != nil {
		var stageErr *sse.StageError
		if errors.As(err, &stageErr) {
			return nil, &Error{Kind: KindStage, Op: op, Message: stageErr.Message, Err: err}
		}
		return nil, err
	}
	return result, nil
}

func decodeResult[T any](op string, raw json.RawMessage) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &Error{Kind: KindDecode, Op: op, Message: "malformed result payload", Err: err}
	}
	return out, nil
}

// Health probes the backend; nil means reachable and healthy.
func (c *Client) Health(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return &Error{Kind: KindTransport, Op: "health", Err: err}
	}
	resp, err := c.plain.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Op: "health", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &Error{Kind: KindAPI, Op: "health", Status: resp.StatusCode, Message: readErrorBody(resp.Body)}
	}
	return nil
}

// UpdateProduction patches fields of a production record.
func (c *Client) UpdateProduction(ctx context.Context, productionID string, fields map[string]any) error {
	if productionID == "" {
		return &Error{Kind: KindDecode, Op: "update production", Message: "empty production id"}
	}
	req, err := c.newRequest(ctx, http.MethodPatch, "/api/productions/"+productionID, fields)
	if err != nil {
		return &Error{Kind: KindTransport, Op: "update production", Err: err}
	}
	resp, err := c.plain.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Op: "update production", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return &Error{Kind: KindAPI, Op: "update production", Status: resp.StatusCode, Message: readErrorBody(resp.Body)}
	}
	return nil
}

func readErrorBody(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 2048))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		switch {
		case payload.Detail != "":
			return payload.Detail
		case payload.Message != "":
			return payload.Message
		case payload.Error != "":
			return payload.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
