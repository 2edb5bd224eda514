// Package scraper crawls the forum's search results and post fragments into the cache.
// Both crawlers run one request at a time with a randomized pause after each.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mfenderov/postseek/internal/cache"
	"github.com/mfenderov/postseek/internal/fetcher"
	"github.com/mfenderov/postseek/internal/metrics"
	"github.com/mfenderov/postseek/internal/parser"
)

// ErrInvalidPage marks a search-results page without the results table.
// The crawl treats it as the end of the results, not as a failure.
var ErrInvalidPage = errors.New("invalid search page")

// ErrSourceUnavailable ends an unbounded crawl after a run of failed fetches.
var ErrSourceUnavailable = errors.New("source unavailable")

const defaultMaxFailures = 5

// TextFetcher fetches a URL body as text.
type TextFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Result summarizes a crawl.
type Result struct {
	Fetched int
	Skipped int // already cached
	Invalid int
	Errors  []string
}

func (r *Result) fail(stage, msg string) {
	r.Errors = append(r.Errors, msg)
	metrics.ObserveItem(stage, metrics.Failed)
}

// SearchCrawler caches raw search-results pages as page-{n}.
type SearchCrawler struct {
	Fetcher  TextFetcher
	URLs     URLs
	Pages    *cache.Store
	MaxPages int // <= 0 means no bound
	// MaxFailures consecutive fetch failures end an unbounded crawl; <= 0 uses 5.
	MaxFailures int
	Delay       fetcher.Delay
	Sleeper     fetcher.Sleeper
}

// Run crawls pages from 0 until MaxPages or the first invalid page.
func (c *SearchCrawler) Run(ctx context.Context) (*Result, error) {
	const stage = "crawl-pages"
	result := &Result{}
	maxFailures := c.MaxFailures
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	failures := 0

	for n := 0; c.MaxPages <= 0 || n < c.MaxPages; n++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		key := cache.Pages.Key(int64(n))
		cached, err := c.Pages.Has(ctx, key)
		if err != nil {
			return result, err
		}
		if cached {
			slog.Debug("page already cached", "page", n)
			result.Skipped++
			metrics.ObserveItem(stage, metrics.Skipped)
			continue
		}

		url := c.URLs.SearchPage(n)
		html, err := c.Fetcher.FetchText(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			slog.Warn("failed to fetch page", "page", n, "error", err)
			result.fail(stage, fmt.Sprintf("page %d: %v", n, err))
			failures++
			if c.MaxPages <= 0 && failures >= maxFailures {
				return result, fmt.Errorf("%w: %d consecutive fetch failures, last: %w", ErrSourceUnavailable, failures, err)
			}
			if err := c.Sleeper.Sleep(ctx, c.Delay.Next()); err != nil {
				return result, err
			}
			continue
		}
		failures = 0

		if !parser.ValidPage(html) {
			slog.Info("end of results", "page", n, "error", ErrInvalidPage, "body", fetcher.Excerpt(html))
			result.Invalid++
			metrics.ObserveItem(stage, metrics.Invalid)
			break
		}

		if err := c.Pages.Set(ctx, key, html); err != nil {
			return result, err
		}
		slog.Info("page saved", "page", n)
		result.Fetched++
		metrics.ObserveItem(stage, metrics.Fetched)

		if err := c.Sleeper.Sleep(ctx, c.Delay.Next()); err != nil {
			return result, err
		}
	}

	return result, nil
}

// PostCrawler caches the raw detail fragment of every post listed on a cached page.
type PostCrawler struct {
	Fetcher TextFetcher
	URLs    URLs
	Pages   *cache.Store
	Posts   *cache.Store
	Delay   fetcher.Delay
	Sleeper fetcher.Sleeper
}

// Run walks cached pages in page order and fetches each uncached post.
func (c *PostCrawler) Run(ctx context.Context) (*Result, error) {
	const stage = "crawl-posts"
	result := &Result{}

	keys, err := c.Pages.Keys(ctx)
	if err != nil {
		return result, err
	}
	pages := cache.Pages.IDs(keys)

	for i, page := range pages {
		var html string
		ok, err := c.Pages.Get(ctx, cache.Pages.Key(page), &html)
		if err != nil {
			return result, err
		}
		if !ok {
			continue
		}

		listing, err := parser.ParsePage(html)
		if err != nil {
			slog.Error("failed to parse page", "page", page, "error", err)
			result.fail(stage, fmt.Sprintf("page %d: %v", page, err))
			continue
		}
		slog.Info("crawling posts", "page", page, "progress", fmt.Sprintf("%d/%d", i+1, len(pages)), "posts", len(listing.Refs))

		for _, ref := range listing.Refs {
			if err := c.crawlPost(ctx, ref, result); err != nil {
				return result, err
			}
		}
	}

	return result, nil
}

// crawlPost handles one listed post. Only cache and context errors are returned.
func (c *PostCrawler) crawlPost(ctx context.Context, ref parser.PostRef, result *Result) error {
	const stage = "crawl-posts"

	if err := ctx.Err(); err != nil {
		return err
	}

	id, err := ref.Int()
	if err != nil {
		slog.Warn("bad post id", "id", ref.ID, "error", err)
		result.fail(stage, err.Error())
		return nil
	}

	key := cache.Posts.Key(id)
	cached, err := c.Posts.Has(ctx, key)
	if err != nil {
		return err
	}
	if cached {
		slog.Debug("post already cached", "id", id)
		result.Skipped++
		metrics.ObserveItem(stage, metrics.Skipped)
		return nil
	}

	fragment, err := c.Fetcher.FetchText(ctx, c.URLs.Post(id))
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("failed to fetch post", "id", id, "error", err)
		result.fail(stage, fmt.Sprintf("post %d: %v", id, err))
	case !parser.ValidPost(fragment):
		slog.Info("post is not valid", "id", id, "body", fetcher.Excerpt(fragment))
		result.Invalid++
		metrics.ObserveItem(stage, metrics.Invalid)
	default:
		if err := c.Posts.Set(ctx, key, fragment); err != nil {
			return err
		}
		slog.Debug("post saved", "id", id)
		result.Fetched++
		metrics.ObserveItem(stage, metrics.Fetched)
	}

	return c.Sleeper.Sleep(ctx, c.Delay.Next())
}
