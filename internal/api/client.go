// Package api is the HTTP client for the statistics backend.
//
// It speaks the backend's JSON endpoints and nothing more: classifying
// replies, polling and retry policy live in internal/orchestrator.
package api

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

	"github.com/google/uuid"

	"github.com/billie-coop/gridscope/internal/plot"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// StatusError is a non-2xx reply.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, body)
}

// Client talks to the backend.
type Client struct {
	client  *http.Client
	baseURL string
	prefix  string
	token   string
	newID   func() string
}

// Option configures a Client.
type Option func(*Client)

// WithPrefix sets the API path prefix (default "/api/v1").
func WithPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = "/" + strings.Trim(prefix, "/")
		if c.prefix == "/" {
			c.prefix = ""
		}
	}
}

// WithToken sends a bearer token with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithRequestIDs overrides request id generation, mainly for tests.
func WithRequestIDs(gen func() string) Option {
	return func(c *Client) {
		c.newID = gen
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  "/api/v1",
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitPlot posts a plot request. The reply is either a cache hit or a task id.
func (c *Client) SubmitPlot(ctx context.Context, q plot.Query) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.do(ctx, http.MethodPost, c.prefix+"/plots/generate", NewPlotRequest(q), &resp); err != nil {
		return nil, err
	}
	if resp.PlotData == nil && resp.TaskID == "" {
		return nil, fmt.Errorf("submit response has neither plot_data nor task_id")
	}
	return &resp, nil
}

// SubmitStatistics queues a raw statistics computation. The backend always
// answers with a task id.
func (c *Client) SubmitStatistics(ctx context.Context, q plot.Query) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.do(ctx, http.MethodPost, c.prefix+"/statistics/", NewStatisticsRequest(q), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TaskStatus fetches the state of a background task.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	var status TaskStatus
	path := c.prefix + "/tasks/status/" + url.PathEscape(taskID)
	if err := c.do(ctx, http.MethodGet, path, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListNetworks fetches one page of the dataset catalog.
func (c *Client) ListNetworks(ctx context.Context, skip, limit int) (*NetworkList, error) {
	q := url.Values{}
	q.Set("skip", strconv.Itoa(skip))
	q.Set("limit", strconv.Itoa(limit))

	var list NetworkList
	if err := c.do(ctx, http.MethodGet, c.prefix+"/networks/?"+q.Encode(), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetNetwork fetches one dataset's metadata.
func (c *Client) GetNetwork(ctx context.Context, id string) (*Network, error) {
	var n Network
	if err := c.do(ctx, http.MethodGet, c.prefix+"/networks/"+url.PathEscape(id), nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// CacheStats reports the size of the backend's result cache.
func (c *Client) CacheStats(ctx context.Context) (*CacheStats, error) {
	var stats CacheStats
	if err := c.do(ctx, http.MethodGet, c.prefix+"/cache/redis/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ClearPlotCache drops every cached plot so the next submission recomputes.
func (c *Client) ClearPlotCache(ctx context.Context) (*ClearCacheResponse, error) {
	var resp ClearCacheResponse
	if err := c.do(ctx, http.MethodDelete, c.prefix+"/cache/redis/plots", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks the backend. The endpoint sits outside the API prefix.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &h); err != nil {
		return nil, fmt.Errorf("backend not reachable: %w", err)
	}
	return &h, nil
}

// Version reports backend component versions.
func (c *Client) Version(ctx context.Context) (*Version, error) {
	var v Version
	if err := c.do(ctx, http.MethodGet, c.prefix+"/version/", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set(RequestIDHeader, c.newID())

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err != nil {
			return fmt.Errorf("backend returned status %d but failed to read body: %w", resp.StatusCode, err)
		}
		return &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
