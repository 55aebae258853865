// Package linesclient is an HTTP client for a remote /lines feature service.
// It implements backend.Backend, so a review service can run against
// another instance's store.
package linesclient

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

	"github.com/joeblew999/plat-polymer/internal/backend"
	"github.com/joeblew999/plat-polymer/internal/feature"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Code, strings.TrimSpace(e.Body))
}

// Client talks to a feature service.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ backend.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as the Authorization header.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for baseURL, e.g. "http://localhost:8086".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, URL: u, Code: resp.StatusCode, Body: string(b)}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func featuresQuery(req backend.FeaturesRequest) url.Values {
	q := url.Values{
		"cog_id":  {req.CogID},
		"ftype":   {string(req.FType)},
		"system":  {req.System},
		"version": {req.Version},
	}
	if req.MaxNum > 0 {
		q.Set("max_num", strconv.Itoa(req.MaxNum))
	}
	return q
}

func (c *Client) Systems(ctx context.Context, cogID string, ftype feature.FType) (map[string][]string, error) {
	var out backend.SystemsResponse
	q := url.Values{"cog_id": {cogID}, "ftype": {string(ftype)}}
	if err := c.do(ctx, http.MethodGet, "/lines/systems", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Systems, nil
}

func (c *Client) ViewFeatures(ctx context.Context, req backend.FeaturesRequest) (*backend.Listing, error) {
	var out backend.Listing
	if err := c.do(ctx, http.MethodGet, "/lines/view-features", featuresQuery(req), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ValidateFeatures(ctx context.Context, req backend.FeaturesRequest) (*backend.Listing, error) {
	var out backend.Listing
	if err := c.do(ctx, http.MethodGet, "/lines/validate-features", featuresQuery(req), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Publish(ctx context.Context, req backend.PublishRequest) error {
	return c.do(ctx, http.MethodPost, "/lines/publish", nil, req, nil)
}

func (c *Client) UpdateStatus(ctx context.Context, req backend.UpdateStatusRequest) error {
	return c.do(ctx, http.MethodPost, "/lines/update-status", nil, req, nil)
}

// HealthStatus is the body of /health.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Health checks the service is up.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var out HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
