// Package content pulls full article text out of origin pages, used to
// enrich thin feed summaries.
package content

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markusmobius/go-trafilatura"
)

// HTTPExtractor extracts article content from URLs using trafilatura
type HTTPExtractor struct {
	client        *http.Client
	userAgent     string
	minTextLength int
}

// NewHTTPExtractor creates a content extractor. Extractions shorter than
// minTextLength are treated as failures so thin boilerplate never
// replaces a real summary.
func NewHTTPExtractor(timeout time.Duration, userAgent string, minTextLength int) *HTTPExtractor {
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; Pulse/1.0)"
	}
	return &HTTPExtractor{
		client:        &http.Client{Timeout: timeout},
		userAgent:     userAgent,
		minTextLength: minTextLength,
	}
}

// Extract retrieves and extracts text content from the given URL
func (e *HTTPExtractor) Extract(ctx context.Context, urlStr string) (string, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", urlStr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d for URL %s", resp.StatusCode, urlStr)
	}

	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		Deduplicate:     true,
		OriginalURL:     parsedURL,
	}

	result, err := trafilatura.Extract(resp.Body, opts)
	if err != nil {
		return "", fmt.Errorf("extract content from %s: %w", urlStr, err)
	}
	if result == nil {
		return "", fmt.Errorf("no content extracted from %s", urlStr)
	}

	text := strings.TrimSpace(result.ContentText)
	if text == "" {
		return "", fmt.Errorf("no text content extracted from %s", urlStr)
	}
	if len(text) < e.minTextLength {
		return "", fmt.Errorf("extracted content too short (%d chars) from %s", len(text), urlStr)
	}

	return text, nil
}
