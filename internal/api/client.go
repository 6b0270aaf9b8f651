package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"latencyglobe/internal/model"
)

// ErrBadStatus is wrapped by errors for non-2xx responses.
var ErrBadStatus = errors.New("unexpected status")

// Client is a thin HTTP client for the latency API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL (e.g. http://host:port).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: NormalizeBaseURL(baseURL),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NormalizeBaseURL adds a scheme to bare host:port addresses.
func NormalizeBaseURL(addr string) string {
	addr = strings.TrimRight(addr, "/")
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "http://" + addr
}

// Fetch returns the current link snapshot from GET /api/latency.
func (c *Client) Fetch(ctx context.Context) ([]model.Link, error) {
	var resp LatencyResponse
	if err := c.getJSON(ctx, "/api/latency", &resp); err != nil {
		return nil, err
	}
	if resp.Links == nil {
		return nil, fmt.Errorf("malformed latency response: missing links")
	}
	return resp.Links, nil
}

// State fetches the tracker state.
func (c *Client) State(ctx context.Context) (StateResponse, error) {
	var resp StateResponse
	err := c.getJSON(ctx, "/api/state", &resp)
	return resp, err
}

// Links fetches filtered links; q carries the filter query parameters.
func (c *Client) Links(ctx context.Context, q url.Values) (LinksResponse, error) {
	var resp LinksResponse
	err := c.getJSON(ctx, withQuery("/api/links", q), &resp)
	return resp, err
}

// Providers fetches the per-provider rollup.
func (c *Client) Providers(ctx context.Context, q url.Values) (ProvidersResponse, error) {
	var resp ProvidersResponse
	err := c.getJSON(ctx, withQuery("/api/providers", q), &resp)
	return resp, err
}

// History fetches a time-windowed history slice.
func (c *Client) History(ctx context.Context, rangeName, pairID string) (HistoryResponse, error) {
	q := url.Values{}
	if rangeName != "" {
		q.Set("range", rangeName)
	}
	if pairID != "" {
		q.Set("pair", pairID)
	}
	var resp HistoryResponse
	err := c.getJSON(ctx, withQuery("/api/history", q), &resp)
	return resp, err
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return fmt.Errorf("%w: %s: %s", ErrBadStatus, res.Status, msg)
		}
		return fmt.Errorf("%w: %s", ErrBadStatus, res.Status)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
