// Package fetcher performs the HTTP requests for the crawlers and the
// provider clients. It never sleeps on its own; callers pace themselves
// with a Delay and a Sleeper between requests.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// Config holds fetcher configuration.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d from %s: %s", e.Code, e.URL, e.Body)
}

// Fetcher fetches pages through a colly collector and JSON through net/http.
type Fetcher struct {
	config     Config
	collector  *colly.Collector
	httpClient *http.Client
}

// New creates a Fetcher with the given configuration.
func New(config Config) *Fetcher {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "postseek/1.0"
	}

	c := colly.NewCollector(
		colly.UserAgent(config.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(config.Timeout)

	return &Fetcher{
		config:     config,
		collector:  c,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

// FetchText GETs url and returns the body as a string.
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, error) {
	var (
		body     []byte
		fetchErr error
	)

	c := f.collector.Clone()
	c.AllowURLRevisit = true
	c.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= 400 {
			fetchErr = &StatusError{URL: url, Code: r.StatusCode, Body: Excerpt(string(r.Body))}
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("fetch %s canceled: %w", url, ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return "", fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", url, err)
		}
	}

	slog.Debug("fetched", "url", url, "size", len(body))
	return string(body), nil
}

// FetchJSON sends body (JSON-encoded, nil for none) with the given method and
// headers, and decodes a 2xx JSON response into out (nil to discard).
func (f *Fetcher) FetchJSON(ctx context.Context, method, url string, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{URL: url, Code: resp.StatusCode, Body: Excerpt(string(respBody))}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// Excerpt returns the first 100 bytes of s for logs and errors.
func Excerpt(s string) string {
	const n = 100
	if len(s) > n {
		return s[:n]
	}
	return s
}
