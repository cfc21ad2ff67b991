// Package remote is the authenticated JSON client for the cases API.
//
// Every call makes a single attempt and reports failures as errors; callers
// decide whether to surface them.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ecmdash/internal/logging"
)

// TokenSource yields the bearer token for a request. An empty token with a
// nil error sends the request unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns itself.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// NetworkError is a transport or decoding failure.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// RejectionError is a non-2xx answer from the API.
type RejectionError struct {
	Status  int
	Message string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 and 403 rejections.
func (e *RejectionError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

type Client struct {
	base   string
	hc     *http.Client
	tokens TokenSource
	log    *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = logging.OrNop(l) } }

// New returns a client for the API rooted at baseURL.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		hc:     http.DefaultClient,
		tokens: tokens,
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.tokens == nil {
		c.tokens = StaticToken("")
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.base }

func (c *Client) newRequest(ctx context.Context, op, method, path string, body any, authed bool) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if !authed {
		return req, nil
	}
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// do sends one authenticated request. A 2xx response body is decoded into
// out when out is non-nil; anything else becomes a RejectionError.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, op, method, path, body, true)
	if err != nil {
		return err
	}
	return c.send(req, op, out)
}

// doPublic is do without the bearer token, for login and registration.
func (c *Client) doPublic(ctx context.Context, op, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, op, method, path, body, false)
	if err != nil {
		return err
	}
	return c.send(req, op, out)
}

func (c *Client) send(req *http.Request, op string, out any) error {
	log := c.log.With(zap.String("op", op), zap.String("request_id", req.Header.Get("X-Request-ID")))
	resp, err := c.hc.Do(req)
	if err != nil {
		log.Debug("request failed", zap.Error(err))
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	log.Debug("response", zap.Int("status", resp.StatusCode), zap.Int("bytes", len(data)))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RejectionError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// errorMessage pulls {"error": "..."} or {"message": "..."} out of a body.
func errorMessage(data []byte) string {
	var env struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &env) == nil {
		if env.Error != "" {
			return env.Error
		}
		return env.Message
	}
	return ""
}
