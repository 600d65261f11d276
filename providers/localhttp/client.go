package localhttp

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

	"github.com/google/uuid"

	"github.com/quailyquaily/llmask/internal/payload"
	"github.com/quailyquaily/llmask/llm"
)

const unreadableBody = "<unable to read body>"

// StatusError reports a reachable server that answered with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	reason := http.StatusText(e.Code)
	if reason == "" {
		return fmt.Sprintf("HTTP error %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("HTTP error %d %s: %s", e.Code, reason, e.Body)
}

// DecodeError reports a 2xx body that is not valid JSON.
type DecodeError struct {
	Body []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response body: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var _ llm.Client = (*Client)(nil)

type Client struct {
	HTTP      *http.Client
	UserAgent string
	Logger    *slog.Logger

	debugFn func(label, payload string)
}

// New returns a client with the given overall request timeout; zero means
// the request may block until the server answers or ctx is done.
func New(timeout time.Duration, userAgent string) *Client {
	return &Client{
		HTTP:      &http.Client{Timeout: timeout},
		UserAgent: strings.TrimSpace(userAgent),
	}
}

func (c *Client) SetDebugFn(fn func(label, payload string)) {
	c.debugFn = fn
}

func (c *Client) Do(ctx context.Context, dialect llm.Dialect, endpoint string, req llm.Request) (llm.Result, error) {
	start := time.Now()
	requestID := uuid.NewString()
	logger := c.logger().With("request_id", requestID, "dialect", string(dialect))

	body, err := payload.Body(dialect, req)
	if err != nil {
		return llm.Result{}, err
	}
	b, err := payload.Encode(dialect, body)
	if err != nil {
		return llm.Result{}, err
	}
	c.debug("request "+endpoint, prettyJSON(b))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return llm.Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}

	logger.Debug("request_start", "endpoint", endpoint, "model", req.Model, "bytes", len(b))

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return llm.Result{}, fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(resp.Body)
	res := llm.Result{
		Status:    resp.StatusCode,
		Body:      raw,
		RequestID: requestID,
		Duration:  time.Since(start),
	}
	logger.Debug("request_done", "status", resp.StatusCode, "bytes", len(raw), "duration", res.Duration.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := string(raw)
		if readErr != nil {
			text = unreadableBody
		}
		c.debug(fmt.Sprintf("response %d", resp.StatusCode), text)
		return res, &StatusError{Code: resp.StatusCode, Body: text}
	}
	if readErr != nil {
		return res, fmt.Errorf("read response body: %w", readErr)
	}
	c.debug(fmt.Sprintf("response %d", resp.StatusCode), prettyJSON(raw))

	doc, err := decodeDocument(raw)
	if err != nil {
		return res, &DecodeError{Body: raw, Err: err}
	}
	res.Document = doc
	return res, nil
}

func decodeDocument(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return doc, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Client) debug(label, payload string) {
	if c.debugFn != nil {
		c.debugFn(label, payload)
	}
}

func prettyJSON(raw []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}
