// Package templateclient implements domain.TemplateStore against a remote
// template backend over HTTP.
package templateclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/log"
)

// TokenSource supplies the bearer token sent with each request. An empty
// token sends no Authorization header.
type TokenSource interface {
	Token() (string, error)
}

// envelope is the backend's response shape for every call.
type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"errorCode"`
	Message   string          `json:"message"`
}

// Client talks to `<base>/templates`.
type Client struct {
	base    *url.URL
	http    *http.Client
	tokens  TokenSource
	limiter *rate.Limiter
	logger  *slog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default client (which uses the configured timeout).
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithRateLimit caps outgoing requests per second; rps <= 0 disables it.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithTokenSource(ts TokenSource) Option { return func(c *Client) { c.tokens = ts } }

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// New builds a client for baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: timeout},
		logger: log.WithComponent("templateclient"),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) endpoint(id string) string {
	u := *c.base
	u.Path += "/templates"
	if id != "" {
		u.Path += "/" + url.PathEscape(id)
	}
	return u.String()
}

// do sends one request and decodes the envelope's data into out (when non-nil).
// Transport failures and non-JSON replies become backend StoreErrors; an
// envelope with success=false is returned as its own StoreError.
func (c *Client) do(ctx context.Context, method, id string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &domain.StoreError{Code: domain.StoreCodeInvalid, Message: err.Error()}
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(id), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("read backend token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.StoreError{Code: domain.StoreCodeBackend, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return &domain.StoreError{Code: domain.StoreCodeBackend, Message: fmt.Sprintf("read response: %v", err)}
	}
	c.logger.Debug("template store request",
		"method", method, "id", id, "status", resp.StatusCode, "duration", time.Since(start))

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &domain.StoreError{
			Code:    domain.StoreCodeBackend,
			Message: fmt.Sprintf("HTTP %d: unexpected response: %s", resp.StatusCode, snippet(raw)),
		}
	}
	if !env.Success || resp.StatusCode >= 400 {
		code := env.ErrorCode
		if code == "" {
			code = codeForStatus(resp.StatusCode)
		}
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &domain.StoreError{Code: code, Message: msg}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &domain.StoreError{Code: domain.StoreCodeBackend, Message: fmt.Sprintf("decode data: %v", err)}
		}
	}
	return nil
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusNotFound:
		return domain.StoreCodeNotFound
	case status >= 400 && status < 500:
		return domain.StoreCodeInvalid
	default:
		return domain.StoreCodeBackend
	}
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}

// ── domain.TemplateStore ─────────────────────────────────────

func (c *Client) List(ctx context.Context) ([]domain.Template, error) {
	templates := []domain.Template{}
	if err := c.do(ctx, http.MethodGet, "", nil, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (c *Client) Get(ctx context.Context, id string) (*domain.Template, error) {
	var t domain.Template
	if err := c.do(ctx, http.MethodGet, id, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Create posts t and copies the server-assigned id and timestamps back.
func (c *Client) Create(ctx context.Context, t *domain.Template) error {
	var created domain.Template
	if err := c.do(ctx, http.MethodPost, "", t, &created); err != nil {
		return err
	}
	mergeServerFields(t, &created)
	return nil
}

func (c *Client) Update(ctx context.Context, t *domain.Template) error {
	if t.ID == "" {
		return &domain.StoreError{Code: domain.StoreCodeInvalid, Message: "template id is required"}
	}
	var updated domain.Template
	if err := c.do(ctx, http.MethodPut, t.ID, t, &updated); err != nil {
		return err
	}
	mergeServerFields(t, &updated)
	return nil
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, id, nil, nil)
}

func mergeServerFields(dst, src *domain.Template) {
	if src.ID != "" {
		dst.ID = src.ID
	}
	if !src.CreatedAt.IsZero() {
		dst.CreatedAt = src.CreatedAt
	}
	if !src.UpdatedAt.IsZero() {
		dst.UpdatedAt = src.UpdatedAt
	}
}
