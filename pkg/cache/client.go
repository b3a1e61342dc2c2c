package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-pkgz/repeater/v2"

	"github.com/aipulse/pulse/pkg/domain"
)

// Client talks to the cache service over HTTP. A cache miss or an
// unreachable service is reported as (nil, false, nil): the cache is an
// accelerator and never a hard dependency of the pipeline.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a cache client for the service at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type getResponse struct {
	Success   bool             `json:"success"`
	Data      []domain.Article `json:"data"`
	Timestamp time.Time        `json:"timestamp"`
	FromCache bool             `json:"fromCache"`
}

type putRequest struct {
	Articles []domain.Article `json:"articles"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Get returns the cached articles for a category. ok is false on miss,
// stale entry or unreachable service.
func (c *Client) Get(ctx context.Context, category string) (articles []domain.Article, ok bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/cache/"+url.PathEscape(category), http.NoBody)
	if err != nil {
		return nil, false, fmt.Errorf("make cache get request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, nil // cache service down is a miss
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, nil
	}

	var body getResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false, nil
	}
	if !body.Success || !body.FromCache {
		return nil, false, nil
	}
	return body.Data, true, nil
}

// Put writes articles for a category, retrying transient failures
func (c *Client) Put(ctx context.Context, category string, articles []domain.Article) error {
	payload, err := json.Marshal(putRequest{Articles: articles})
	if err != nil {
		return fmt.Errorf("marshal cache put: %w", err)
	}

	rep := repeater.NewBackoff(3, 200*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err = rep.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/api/cache/"+url.PathEscape(category), bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("make cache put request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("cache put %s: %w", category, err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("cache put %s: unexpected status %d", category, resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache put failed after retries: %w", err)
	}
	return nil
}

// Refresh invalidates a category so the next read misses
func (c *Client) Refresh(ctx context.Context, category string) error {
	return c.post(ctx, "/api/cache/"+url.PathEscape(category)+"/refresh")
}

// Clear removes one category, or all snapshots when category is empty
func (c *Client) Clear(ctx context.Context, category string) error {
	path := "/api/cache"
	if category != "" {
		path += "/" + url.PathEscape(category)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("make cache clear request: %w", err)
	}
	return c.doMessage(req)
}

// Status returns the per-category freshness report
func (c *Client) Status(ctx context.Context) (map[string]EntryStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/cache/status", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("make cache status request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cache status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cache status: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Success bool                   `json:"success"`
		Data    map[string]EntryStatus `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode cache status: %w", err)
	}
	if !body.Success {
		return nil, fmt.Errorf("cache status request rejected")
	}
	return body.Data, nil
}

func (c *Client) post(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("make cache request: %w", err)
	}
	return c.doMessage(req)
}

func (c *Client) doMessage(req *http.Request) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("cache request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	var body messageResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode cache response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !body.Success {
		return fmt.Errorf("cache request %s failed: %s", req.URL.Path, body.Error)
	}
	return nil
}
