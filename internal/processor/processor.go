package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/mfenderov/postseek/internal/cache"
	"github.com/mfenderov/postseek/internal/metrics"
	"github.com/mfenderov/postseek/internal/parser"
	"github.com/mfenderov/postseek/pkg/models"
)

const stage = "process"

// ErrIDMismatch is returned when a cached post fragment carries a different
// id than the search-results row that referenced it.
var ErrIDMismatch = errors.New("post id does not match its listing")

// Result summarizes a processing run.
type Result struct {
	Pages     int
	Processed int
	Skipped   int
	Failed    int
	Errors    []string
}

// Processor normalizes raw posts into processedPost entries.
type Processor struct {
	pages     *cache.Store
	posts     *cache.Store
	processed *cache.Store
	embedded  *cache.Store
}

// New creates a Processor over the given stores.
func New(stores *cache.Stores) *Processor {
	return &Processor{
		pages:     stores.Pages,
		posts:     stores.Posts,
		processed: stores.Processed,
		embedded:  stores.Embeddings,
	}
}

// Run normalizes every post referenced by a cached page. Existing processed
// posts are rebuilt from their raw fragment, never from their previous output.
func (p *Processor) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	err := p.eachListing(ctx, func(page int64, listing *parser.Listing) error {
		result.Pages++
		for i, ref := range listing.Refs {
			if err := ctx.Err(); err != nil {
				return err
			}

			post, err := p.build(ctx, ref, listing.Forums[i])
			if err != nil {
				if errors.Is(err, errMissingRaw) {
					slog.Debug("raw post not cached", "id", ref.ID, "page", page)
					result.Skipped++
					metrics.ObserveItem(stage, metrics.Skipped)
					continue
				}
				if isCacheError(err) {
					return err
				}
				slog.Warn("failed to process post", "id", ref.ID, "page", page, "error", err)
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("post %s: %v", ref.ID, err))
				metrics.ObserveItem(stage, metrics.Failed)
				continue
			}

			if err := p.processed.Set(ctx, cache.ProcessedPosts.Key(post.ID), post); err != nil {
				return err
			}
			result.Processed++
			metrics.ObserveItem(stage, metrics.Processed)
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	slog.Info("processing complete", "pages", result.Pages, "processed", result.Processed,
		"skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

var errMissingRaw = errors.New("raw post not cached")

type cacheError struct{ err error }

func (e *cacheError) Error() string { return e.err.Error() }
func (e *cacheError) Unwrap() error { return e.err }

func isCacheError(err error) bool {
	var ce *cacheError
	return errors.As(err, &ce)
}

func (p *Processor) build(ctx context.Context, ref parser.PostRef, forum string) (*models.Post, error) {
	refID, err := ref.Int()
	if err != nil {
		return nil, err
	}

	var fragment string
	ok, err := p.posts.Get(ctx, cache.Posts.Key(refID), &fragment)
	if err != nil {
		return nil, &cacheError{err}
	}
	if !ok {
		return nil, errMissingRaw
	}

	raw, err := parser.ParseRawPost(fragment)
	if err != nil {
		return nil, err
	}

	id, err := strconv.ParseInt(raw.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse id %q: %w", raw.ID, err)
	}
	if id != refID {
		return nil, fmt.Errorf("%w: fragment %d, listing %d", ErrIDMismatch, id, refID)
	}

	return &models.Post{
		ID:      id,
		Title:   ref.Title,
		Forum:   forum,
		First:   number(id, "first", raw.First),
		Last:    number(id, "last", raw.Last),
		When:    number(id, "when", raw.When),
		Utime:   raw.Utime,
		Content: Normalize(raw.Content),
	}, nil
}

// number parses a secondary numeric field, degrading to zero.
func number(id int64, field, s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		slog.Warn("data quality: non-numeric field", "id", id, "field", field, "value", s)
		return 0
	}
	return n
}

// eachListing parses cached pages in ascending page order and calls fn for
// every page whose refs and forum names line up.
func (p *Processor) eachListing(ctx context.Context, fn func(page int64, listing *parser.Listing) error) error {
	keys, err := p.pages.Keys(ctx)
	if err != nil {
		return err
	}

	for _, page := range cache.Pages.IDs(keys) {
		var html string
		ok, err := p.pages.Get(ctx, cache.Pages.Key(page), &html)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		listing, err := parser.ParsePage(html)
		if err != nil {
			slog.Warn("failed to parse page", "page", page, "error", err)
			continue
		}
		if !listing.Aligned() {
			slog.Warn("page length mismatch, skipping",
				"page", page, "posts", len(listing.Refs), "forums", len(listing.Forums))
			continue
		}

		if err := fn(page, listing); err != nil {
			return err
		}
	}
	return nil
}

// HealTitles fills empty titles on processed posts and embeddings from the
// page listings. It returns the number of entries rewritten.
func (p *Processor) HealTitles(ctx context.Context) (int, error) {
	healed := 0

	err := p.eachListing(ctx, func(_ int64, listing *parser.Listing) error {
		for _, ref := range listing.Refs {
			if ref.Title == "" {
				continue
			}
			id, err := ref.Int()
			if err != nil {
				continue
			}

			var post models.Post
			ok, err := p.processed.Get(ctx, cache.ProcessedPosts.Key(id), &post)
			if err != nil {
				return err
			}
			if ok && post.Title == "" {
				post.Title = ref.Title
				if err := p.processed.Set(ctx, cache.ProcessedPosts.Key(id), post); err != nil {
					return err
				}
				healed++
			}

			var embedded models.EmbeddedPost
			ok, err = p.embedded.Get(ctx, cache.Embeddings.Key(id), &embedded)
			if err != nil {
				return err
			}
			if ok && embedded.Title == "" {
				embedded.Title = ref.Title
				if err := p.embedded.Set(ctx, cache.Embeddings.Key(id), embedded); err != nil {
					return err
				}
				healed++
			}
		}
		return nil
	})
	if err != nil {
		return healed, err
	}

	slog.Info("titles healed", "entries", healed)
	return healed, nil
}

// View returns the unnormalized content of a cached raw post.
func (p *Processor) View(ctx context.Context, id int64) (string, error) {
	var fragment string
	ok, err := p.posts.Get(ctx, cache.Posts.Key(id), &fragment)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("post %d is not cached", id)
	}

	raw, err := parser.ParseRawPost(fragment)
	if err != nil {
		return "", fmt.Errorf("post %d: %w", id, err)
	}
	return raw.Content, nil
}
