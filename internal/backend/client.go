// Package backend is the HTTP client for the audit REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"rafyaudit/internal/models"
)

const maxErrorBody = 64 << 10

// Endpoint names used for logging and metrics.
const (
	EndpointLogin       = "auth_login"
	EndpointMe          = "auth_me"
	EndpointListAudits  = "audits_list"
	EndpointCreateAudit = "audits_create"
	EndpointGetAudit    = "audits_get"
	EndpointDeleteAudit = "audits_delete"
	EndpointAuditPDF    = "audits_pdf"
	EndpointCommercials = "users_commercials"
	EndpointControllers = "users_controllers"
)

// TokenSource yields the current bearer token. It is consulted on every request.
type TokenSource interface {
	Token() (string, bool)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func() (string, bool)

func (f TokenSourceFunc) Token() (string, bool) { return f() }

// Observer receives one call per finished backend request.
type Observer interface {
	ObserveBackendCall(endpoint, outcome string, elapsed time.Duration)
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger
	observer   Observer
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient = &http.Client{Timeout: d} }
}
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.logger = l } }
func WithObserver(o Observer) Option { return func(c *Client) { c.observer = o } }
func WithTokens(ts TokenSource) Option { return func(c *Client) { c.tokens = ts } }

// New creates a client for baseURL, e.g. https://host/api/v1.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTokenSource returns a copy of c bound to ts.
func (c *Client) WithTokenSource(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

// ObservedBy returns a copy of c reporting to o.
func (c *Client) ObservedBy(o Observer) *Client {
	cp := *c
	cp.observer = o
	return &cp
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// Login exchanges credentials for a token. It never sends a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (models.LoginResponse, error) {
	var out models.LoginResponse
	payload := map[string]string{"email": email, "password": password}
	err := c.doJSON(ctx, EndpointLogin, http.MethodPost, "/auth/login", false, payload, &out)
	return out, err
}

// Me returns the profile behind the current token.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var out models.User
	err := c.doJSON(ctx, EndpointMe, http.MethodGet, "/auth/me", true, nil, &out)
	return out, err
}

func (c *Client) ListAudits(ctx context.Context) ([]models.AuditRecord, error) {
	var out []models.AuditRecord
	err := c.doJSON(ctx, EndpointListAudits, http.MethodGet, "/audits", true, nil, &out)
	return out, err
}

func (c *Client) CreateAudit(ctx context.Context, rec models.AuditRecord) (models.AuditRecord, error) {
	var out models.AuditRecord
	err := c.doJSON(ctx, EndpointCreateAudit, http.MethodPost, "/audits", true, rec, &out)
	return out, err
}

func (c *Client) GetAudit(ctx context.Context, id string) (models.AuditRecord, error) {
	var out models.AuditRecord
	err := c.doJSON(ctx, EndpointGetAudit, http.MethodGet, "/audits/"+url.PathEscape(id), true, nil, &out)
	return out, err
}

func (c *Client) DeleteAudit(ctx context.Context, id string) error {
	return c.doJSON(ctx, EndpointDeleteAudit, http.MethodDelete, "/audits/"+url.PathEscape(id), true, nil, nil)
}

// Commercials lists the auditable staff.
func (c *Client) Commercials(ctx context.Context) ([]models.Commercial, error) {
	var out []models.Commercial
	err := c.doJSON(ctx, EndpointCommercials, http.MethodGet, "/users/commercials", true, nil, &out)
	return out, err
}

// Controllers lists internal controller names.
func (c *Client) Controllers(ctx context.Context) ([]string, error) {
	var out []string
	err := c.doJSON(ctx, EndpointControllers, http.MethodGet, "/users/controllers", true, nil, &out)
	return out, err
}

// PDF is a streamed report. The caller must close Body.
type PDF struct {
	Body        io.ReadCloser
	ContentType string
	Length      int64
}

// AuditPDF opens the PDF export of one audit.
func (c *Client) AuditPDF(ctx context.Context, id string) (*PDF, error) {
	start := time.Now()
	resp, err := c.send(ctx, EndpointAuditPDF, http.MethodGet, "/audits/"+url.PathEscape(id)+"/pdf", true, nil)
	if err != nil {
		c.observe(EndpointAuditPDF, err, start)
		return nil, err
	}
	if err := c.checkStatus(EndpointAuditPDF, resp); err != nil {
		c.observe(EndpointAuditPDF, err, start)
		return nil, err
	}
	c.observe(EndpointAuditPDF, nil, start)
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/pdf"
	}
	return &PDF{Body: resp.Body, ContentType: ct, Length: resp.ContentLength}, nil
}

func (c *Client) doJSON(ctx context.Context, endpoint, method, path string, auth bool, in, out any) (err error) {
	start := time.Now()
	defer func() { c.observe(endpoint, err, start) }()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}
	resp, err := c.send(ctx, endpoint, method, path, auth, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := c.checkStatus(endpoint, resp); err != nil {
		return err
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, endpoint, method, path string, auth bool, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		// read fresh each time so a token swapped elsewhere is picked up
		if c.tokens != nil {
			if tok, ok := c.tokens.Token(); ok && tok != "" {
				req.Header.Set("Authorization", "Bearer "+tok)
			}
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	return resp, nil
}

func (c *Client) checkStatus(endpoint string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &Error{
		Endpoint: endpoint,
		Status:   resp.StatusCode,
		Detail:   parseDetail(raw),
		Body:     string(raw),
	}
}

func (c *Client) observe(endpoint string, err error, start time.Time) {
	elapsed := time.Since(start)
	outcome := outcomeOf(err)
	if err != nil {
		c.logger.Debug("backend call failed", zap.String("endpoint", endpoint), zap.Duration("elapsed", elapsed), zap.Error(err))
	} else {
		c.logger.Debug("backend call", zap.String("endpoint", endpoint), zap.Duration("elapsed", elapsed))
	}
	if c.observer != nil {
		c.observer.ObserveBackendCall(endpoint, outcome, elapsed)
	}
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if be, ok := err.(*Error); ok {
		return fmt.Sprintf("http_%d", be.Status)
	}
	return "transport"
}
