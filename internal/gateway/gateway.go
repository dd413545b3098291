// Package gateway is the single network boundary between the client and the
// marketplace backend.
//
// Every request reads the session token at send time, so a Clear issued while
// a call is in flight is honored by the next request. Responses are decoded
// into typed values here; nothing untyped leaves the package. Every failure is
// a *Error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// TokenSource supplies the bearer token and lets the gateway drop a session
// the backend no longer accepts. *session.Store implements it.
type TokenSource interface {
	Token() (string, bool)
	// ClearIfToken clears the session only if token is still current.
	ClearIfToken(ctx context.Context, token string) (bool, error)
}

// Client performs typed calls against the backend REST API.
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    TokenSource
	log       *slog.Logger
	metrics   *Metrics
	onExpired func()
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.log = l }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

// OnSessionExpired registers a callback fired after the backend rejected the
// session token and the session was cleared. Use it to route back to login.
func OnSessionExpired(fn func()) Option {
	return func(cl *Client) { cl.onExpired = fn }
}

// New creates a Client for baseURL using tokens for authentication.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		tokens:  tokens,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "gateway")
	return c
}

// request describes one backend call.
type request struct {
	operation   string
	method      string
	path        string
	body        []byte
	contentType string
	// authenticated attaches the bearer token and treats a 401/403 as an
	// expired session.
	authenticated bool
	classify      classifier
}

func jsonRequest(operation, method, path string, payload any) (request, error) {
	r := request{operation: operation, method: method, path: path, classify: classifyDefault, authenticated: true}
	if payload == nil {
		return r, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return r, &Error{Kind: KindValidation, Message: "failed to encode request", Err: err}
	}
	r.body = body
	r.contentType = "application/json"
	return r, nil
}

// send executes r and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) send(ctx context.Context, r request, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.observe(r.operation, start, err)
		if err != nil {
			c.log.Warn("backend call failed", "operation", r.operation, "error", err,
				"duration_ms", time.Since(start).Milliseconds())
		} else {
			c.log.Debug("backend call ok", "operation", r.operation,
				"duration_ms", time.Since(start).Milliseconds())
		}
	}()

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return &Error{Kind: KindTransport, Message: "failed to build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}

	var sentToken string
	if r.authenticated {
		if token, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
			sentToken = token
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Message: "backend unreachable", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Kind: KindTransport, Message: "failed to read response", Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gerr := &Error{
			Kind:    r.classify(resp.StatusCode),
			Message: errorMessage(data, resp.StatusCode),
			Status:  resp.StatusCode,
		}
		if sentToken != "" && gerr.Kind == KindAuth {
			c.expireSession(ctx, sentToken)
		}
		return gerr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		if out != nil {
			return &Error{Kind: KindServer, Message: "empty response", Status: resp.StatusCode}
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindServer, Message: "malformed response", Status: resp.StatusCode, Err: err}
	}
	return nil
}

// expireSession drops the session the backend just rejected, unless a newer
// session replaced it while the request was in flight.
func (c *Client) expireSession(ctx context.Context, token string) {
	cleared, err := c.tokens.ClearIfToken(context.WithoutCancel(ctx), token)
	if err != nil {
		c.log.Error("failed to clear rejected session", "error", err)
	}
	if !cleared && err == nil {
		c.log.Debug("rejected token already replaced; session kept")
		return
	}
	c.log.Info("session rejected by backend; cleared")
	if c.onExpired != nil {
		c.onExpired()
	}
}

func (c *Client) requireSession(operation string) error {
	if _, ok := c.tokens.Token(); !ok {
		err := &Error{Kind: KindAuth, Message: "not signed in"}
		c.metrics.observe(operation, time.Now(), err)
		return err
	}
	return nil
}
