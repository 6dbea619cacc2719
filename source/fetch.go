package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// ErrStatus is wrapped by HTTPFetcher for non-2xx responses.
var ErrStatus = errors.New("source: unexpected http status")

// Fetcher returns the raw bytes behind a URL. Implementations must not serve a
// cached copy: every call goes back to the origin.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher fetches over HTTP(S) with caching disabled.
type HTTPFetcher struct {
	Client  *http.Client
	MaxSize int64
}

// NewHTTPFetcher returns a fetcher with its own client and the given timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: timeout}, MaxSize: 64 << 20}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Pragma", "no-cache")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s from %s", ErrStatus, resp.Status, rawURL)
	}

	var body io.Reader = resp.Body
	if f.MaxSize > 0 {
		body = io.LimitReader(resp.Body, f.MaxSize)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}
	return data, nil
}

// FileFetcher reads file:// URLs and bare paths from disk.
type FileFetcher struct{}

// Fetch implements Fetcher.
func (FileFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := rawURL
	if strings.HasPrefix(rawURL, "file://") {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", rawURL, err)
		}
		path = u.Path
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// AutoFetcher routes http(s) URLs to HTTP and everything else to disk.
type AutoFetcher struct {
	HTTP *HTTPFetcher
	File FileFetcher
}

// NewAutoFetcher returns an AutoFetcher whose HTTP side uses timeout.
func NewAutoFetcher(timeout time.Duration) *AutoFetcher {
	return &AutoFetcher{HTTP: NewHTTPFetcher(timeout)}
}

// Fetch implements Fetcher.
func (f *AutoFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		return f.HTTP.Fetch(ctx, rawURL)
	}
	return f.File.Fetch(ctx, rawURL)
}
