// Package httpclient talks to the household expense REST API.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"casaspese/internal/api"
	"casaspese/internal/core"
	"casaspese/internal/log"
)

var (
	_ api.ExpenseCreator = (*Client)(nil)
	_ api.BudgetReader   = (*Client)(nil)
	_ api.Directory      = (*Directory)(nil)
)

const maxErrorBody = 4 << 10

// Client implements the api ports over HTTP.
type Client struct {
	base    *url.URL
	http    *http.Client
	logger  *log.Logger
	tracing *tracing
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent(log.ComponentAPI) }
}

// New returns a client for the API rooted at baseURL, e.g.
// "https://casa.example.com/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse base url: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := *c.http
	next := hc.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	c.tracing = &tracing{next: next}
	hc.Transport = c.tracing
	c.http = &hc
	return c, nil
}

// Metrics reports the calls made so far.
func (c *Client) Metrics() Metrics {
	return c.tracing.snapshot()
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Create posts a new expense.
func (c *Client) Create(ctx context.Context, p core.CreatePayload) (core.ExpenseRecord, error) {
	body, err := json.Marshal(newCreateRequest(p))
	if err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("encode expense: %w", err)
	}
	var resp expenseResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint("/expenses", nil), body, &resp); err != nil {
		return core.ExpenseRecord{}, err
	}
	return resp.record()
}

// Backend wires every collaborator to this client.
func (c *Client) Backend() api.Backend {
	return api.Backend{
		Expenses:   c,
		Categories: c.Categories(),
		Users:      c.Users(),
		Budgets:    c,
	}
}

// Categories returns the category directory.
func (c *Client) Categories() *Directory {
	return &Directory{client: c, path: "/categories"}
}

// Users returns the household member directory.
func (c *Client) Users() *Directory {
	return &Directory{client: c, path: "/users"}
}

// Directory lists one id/name collection.
type Directory struct {
	client *Client
	path   string
}

func (d *Directory) List(ctx context.Context) ([]core.DirectoryEntry, error) {
	var entries []directoryEntry
	if err := d.client.do(ctx, http.MethodGet, d.client.endpoint(d.path, nil), nil, &entries); err != nil {
		return nil, err
	}
	out := make([]core.DirectoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.ID <= 0 {
			return nil, fmt.Errorf("%s entry id %d: %w", d.path, e.ID, core.ErrMalformedResponse)
		}
		out = append(out, core.DirectoryEntry{ID: e.ID, Name: e.Name})
	}
	return out, nil
}

// Get returns the budget summary for a month.
func (c *Client) Get(ctx context.Context, year, month int) (core.BudgetSummary, error) {
	q := url.Values{}
	q.Set("year", strconv.Itoa(year))
	q.Set("month", strconv.Itoa(month))
	var resp budgetResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint("/budgets/summary", q), nil, &resp); err != nil {
		return core.BudgetSummary{}, err
	}
	return core.BudgetSummary{
		Year:      year,
		Month:     month,
		Total:     core.MoneyFromDecimal(resp.TotalBudget),
		Spent:     core.MoneyFromDecimal(resp.Spent),
		Remaining: core.MoneyFromDecimal(resp.RemainingBudget),
	}, nil
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "api call",
		"method", method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("decode %s: %v: %w", req.URL.Path, err, core.ErrMalformedResponse)
	}
	return nil
}

func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &core.APIError{Status: resp.StatusCode}
	var body errorResponse
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Message = body.Error
		if apiErr.Message == "" {
			apiErr.Message = body.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
