// Package endee is an HTTP client for the Endee vector database REST API.
package endee

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/EndeeLabs/endee-web-ui/internal/vectorstore"
)

const (
	// DefaultBaseURL is the default Endee server address.
	DefaultBaseURL = "http://localhost:8080"

	// DefaultTimeout bounds every request that does not stream a body.
	DefaultTimeout = 30 * time.Second

	apiPrefix = "/api/v1"
)

// APIError is a non-2xx response from the Endee server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("endee: %s (status %d)", e.Message, e.StatusCode)
}

// BackendMessage is the message as the server phrased it, without decoration.
func (e *APIError) BackendMessage() string {
	return e.Message
}

// Unwrap maps HTTP statuses onto the vectorstore sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return vectorstore.ErrUnauthorized
	case http.StatusNotFound:
		return vectorstore.ErrNotFound
	}
	return nil
}

// Client talks to a single Endee server with a fixed auth token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option is a functional option for configuring Client.
type Option func(*Client)

// WithBaseURL sets the server address.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithToken sets the token sent in the Authorization header.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Endee client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFactory returns a vectorstore.Factory producing clients that share
// baseURL and hc but carry their own token.
func NewFactory(baseURL string, hc *http.Client) vectorstore.Factory {
	return func(token string) (vectorstore.Backend, error) {
		opts := []Option{WithBaseURL(baseURL), WithToken(token)}
		if hc != nil {
			opts = append(opts, WithHTTPClient(hc))
		}
		return NewClient(opts...), nil
	}
}

// Close is a no-op; the client holds no connections beyond the shared transport.
func (c *Client) Close() error {
	return nil
}

// Token returns the token the client authenticates with.
func (c *Client) Token() string {
	return c.token
}

// Health checks server liveness via GET /api/v1/health.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + apiPrefix + path
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
	return req, nil
}

// doJSON sends in as a JSON body (when non-nil) and decodes the response into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// readAPIError extracts the backend's error message, falling back to the status text.
func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := extractMessage(raw)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if msg == "" {
		msg = "request failed"
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

func extractMessage(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}

	var quoted string
	if err := json.Unmarshal(raw, &quoted); err == nil {
		return quoted
	}

	var body struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		// Plain-text error bodies are common from the Endee server
		if raw[0] == '{' || raw[0] == '[' {
			return ""
		}
		return string(raw)
	}

	if len(body.Error) > 0 {
		var s string
		if err := json.Unmarshal(body.Error, &s); err == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return body.Message
}

// decodeList accepts either a bare JSON array or an object wrapping it under key.
func decodeList(raw json.RawMessage, key string, out any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '[' {
		return json.Unmarshal(raw, out)
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return err
	}
	inner, ok := wrapper[key]
	if !ok {
		return nil
	}
	return json.Unmarshal(inner, out)
}

// flexTime decodes unix seconds, unix milliseconds or RFC 3339 strings.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			t.Time = time.UnixMilli(n).UTC()
		} else {
			t.Time = time.Unix(n, 0).UTC()
		}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

func escape(segment string) string {
	return url.PathEscape(segment)
}

// IsAPIError reports whether err carries an Endee HTTP status.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
