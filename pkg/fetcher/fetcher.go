// Package fetcher retrieves raw feed content, falling back to rotating
// CORS relays when the origin refuses a direct request.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"

	"github.com/aipulse/pulse/pkg/domain"
)

// ErrAllAttemptsFailed reports that the direct fetch and every proxy
// attempt were exhausted. Callers record it via the health tracker, it is
// never surfaced as a hard error.
var ErrAllAttemptsFailed = errors.New("all fetch attempts failed")

// RawContent is the body of a successful fetch plus the content type the
// origin (or relay) declared, used as a parsing hint.
type RawContent struct {
	Body        string
	ContentType string
}

// ProxySelector picks relay endpoints and learns from attempt outcomes
type ProxySelector interface {
	Select(tried map[string]bool) (domain.ProxyEndpoint, bool)
	ReportOutcome(template string, success bool, latency time.Duration)
}

// Options holds fetcher settings
type Options struct {
	Timeout       time.Duration // per-attempt timeout, default 15s
	ProxyAttempts int           // relay attempts after a failed direct fetch, default 3
	Backoff       time.Duration // initial pause between relay attempts, default 200ms
	UserAgent     string
}

// Fetcher performs one feed fetch with direct-then-proxy fallback
type Fetcher struct {
	client   *http.Client
	selector ProxySelector
	opts     Options
}

// New creates a fetcher using the given selector for relay fallback
func New(selector ProxySelector, opts Options) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.ProxyAttempts == 0 {
		opts.ProxyAttempts = 3
	}
	if opts.Backoff == 0 {
		opts.Backoff = 200 * time.Millisecond
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Pulse/1.0"
	}
	return &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		selector: selector,
		opts:     opts,
	}
}

// Fetch retrieves the raw content for one feed source. Video-channel
// sources are first resolved to the provider's syndication URL. A failed
// direct attempt falls back to up to ProxyAttempts relay attempts, each
// through a not-yet-tried endpoint, each reported back to the selector.
func (f *Fetcher) Fetch(ctx context.Context, src domain.FeedSource) (RawContent, error) {
	target := src.URL
	if src.Kind == domain.KindVideoChannel {
		resolved, err := SyndicationURL(src.URL)
		if err != nil {
			return RawContent{}, fmt.Errorf("resolve channel feed for %s: %w", src.Name, err)
		}
		target = resolved
	}

	// direct attempt first
	raw, err := f.get(ctx, target)
	if err == nil {
		return raw, nil
	}
	lgr.Printf("[DEBUG] direct fetch of %s failed, trying proxies: %v", src.Name, err)

	if f.selector == nil {
		return RawContent{}, fmt.Errorf("fetch %s: %w", src.Name, ErrAllAttemptsFailed)
	}

	tried := map[string]bool{}
	var result RawContent
	retrier := repeater.NewBackoff(f.opts.ProxyAttempts, f.opts.Backoff, repeater.WithMaxDelay(2*time.Second))
	err = retrier.Do(ctx, func() error {
		endpoint, ok := f.selector.Select(tried)
		if !ok {
			return errors.New("no proxy endpoints configured")
		}
		tried[endpoint.Template] = true

		start := time.Now()
		body, ferr := f.get(ctx, RelayURL(endpoint.Template, target))
		f.selector.ReportOutcome(endpoint.Template, ferr == nil, time.Since(start))
		if ferr != nil {
			lgr.Printf("[DEBUG] proxy fetch of %s via %s failed: %v", src.Name, endpoint.Template, ferr)
			return ferr
		}
		result = body
		return nil
	})
	if err != nil {
		return RawContent{}, fmt.Errorf("fetch %s: %w", src.Name, ErrAllAttemptsFailed)
	}
	return result, nil
}

// get performs a single GET attempt with its own timeout
func (f *Fetcher) get(ctx context.Context, target string) (RawContent, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return RawContent{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	addBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return RawContent{}, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return RawContent{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return RawContent{}, fmt.Errorf("read body: %w", err)
	}

	return RawContent{Body: string(body), ContentType: resp.Header.Get("Content-Type")}, nil
}

// RelayURL builds the relay request URL from a per-endpoint template.
// Templates either carry a %s verb for the encoded target or act as a
// plain prefix the encoded target is appended to.
func RelayURL(template, target string) string {
	encoded := url.QueryEscape(target)
	if strings.Contains(template, "%s") {
		return strings.Replace(template, "%s", encoded, 1)
	}
	return template + encoded
}
