package contentfetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/c360studio/semdigest/source/weburl"
)

// Page is a fetched HTML document.
type Page struct {
	URL         string
	Body        []byte
	ContentType string
}

// Fetcher performs article GETs under a URL policy.
type Fetcher struct {
	client         *http.Client
	policy         weburl.Policy
	userAgent      string
	maxContentSize int64
}

// NewFetcher creates a fetcher whose transport re-checks resolved addresses
// against policy and whose redirects are validated like the original URL.
func NewFetcher(policy weburl.Policy, timeout time.Duration, userAgent string, maxContentSize int64) *Fetcher {
	transport := &http.Transport{
		DialContext:           policy.DialContext(10 * time.Second),
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				if err := policy.Validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		policy:         policy,
		userAgent:      userAgent,
		maxContentSize: maxContentSize,
	}
}

// Fetch retrieves url. Non-200 responses and oversized bodies are errors.
// The returned Page.URL is the final URL after redirects.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := f.policy.Validate(url); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxContentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxContentSize {
		return nil, fmt.Errorf("content too large (exceeds %d bytes)", f.maxContentSize)
	}

	return &Page{
		URL:         resp.Request.URL.String(),
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
