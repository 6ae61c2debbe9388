// Package pricebook is the HTTP client for the Pricebook backend. It
// carries no state of its own: every call is one request against the
// base URL, decoded into generic JSON for the bridge layer to format.
package pricebook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is used when neither Config.BaseURL nor
	// PRICEBOOK_API_URL is set.
	DefaultBaseURL = "http://localhost:3001"

	// DefaultTimeout bounds each backend call.
	DefaultTimeout = 30 * time.Second

	// ChatPath is the backend's conversational endpoint.
	ChatPath = "/chat/pricebook"
)

// EnvBaseURL is the environment variable consulted for the backend base URL.
const EnvBaseURL = "PRICEBOOK_API_URL"

// Config controls backend connection behavior.
type Config struct {
	// BaseURL is the Pricebook API root. Empty falls back to the
	// PRICEBOOK_API_URL environment variable, then DefaultBaseURL.
	BaseURL string

	// Timeout bounds each HTTP call (default 30s).
	Timeout time.Duration

	// HTTPClient overrides the pooled client. Tests inject fakes here.
	HTTPClient *http.Client
}

// Client issues requests against the Pricebook backend.
type Client struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewClient resolves configuration defaults and returns a client backed
// by the shared connection pool.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = strings.TrimSpace(os.Getenv(EnvBaseURL))
	}
	if base == "" {
		base = DefaultBaseURL
	}
	base = strings.TrimRight(base, "/")

	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("pricebook: invalid base URL %q: %w", base, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("pricebook: base URL %q must be http or https", base)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = sharedHTTPClientPool.client(timeout)
	}

	return &Client{
		baseURL: base,
		client:  client,
		timeout: timeout,
	}, nil
}

// BaseURL returns the resolved backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Timeout returns the per-call budget this client was built with.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Get issues a GET against path with optional query parameters and
// returns the decoded JSON payload.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (any, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, target, nil)
}

// Post issues a POST with a JSON-encoded body.
func (c *Client) Post(ctx context.Context, path string, body any) (any, error) {
	return c.do(ctx, http.MethodPost, c.baseURL+path, body)
}

// Patch issues a PATCH with a JSON-encoded body.
func (c *Client) Patch(ctx context.Context, path string, body any) (any, error) {
	return c.do(ctx, http.MethodPatch, c.baseURL+path, body)
}

// Chat forwards a natural-language message to the backend's
// conversational endpoint on behalf of sessionID.
func (c *Client) Chat(ctx context.Context, sessionID, message string) (any, error) {
	return c.Post(ctx, ChatPath, map[string]any{
		"sessionId": sessionID,
		"message":   message,
	})
}

func (c *Client) do(ctx context.Context, method, target string, body any) (any, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("pricebook: encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("pricebook: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Message: "reading response: " + err.Error(), Cause: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		message := strings.TrimSpace(string(respBody))
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return nil, &Error{Kind: KindStatus, StatusCode: resp.StatusCode, Message: message}
	}

	trimmed := bytes.TrimSpace(respBody)
	if len(trimmed) == 0 {
		return map[string]any{}, nil
	}

	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return nil, &Error{Kind: KindDecode, Message: "decoding response: " + err.Error(), Cause: err}
	}
	return decoded, nil
}

// classifyTransportError sorts client.Do failures into timeout versus
// connection kinds so the adapters can render their special-cased texts.
func classifyTransportError(err error) *Error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timed out", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "request timed out", Cause: err}
	}
	return &Error{Kind: KindConnection, Message: err.Error(), Cause: err}
}
