// Package pipeline wires the crawl, process, embed and publish stages and
// runs them in order.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mfenderov/postseek/internal/cache"
	"github.com/mfenderov/postseek/internal/config"
	"github.com/mfenderov/postseek/internal/embeddings"
	"github.com/mfenderov/postseek/internal/events"
	"github.com/mfenderov/postseek/internal/fetcher"
	"github.com/mfenderov/postseek/internal/processor"
	"github.com/mfenderov/postseek/internal/publisher"
	"github.com/mfenderov/postseek/internal/scraper"
)

// Stage is one named step of the pipeline.
type Stage struct {
	Name string
	Run  func(ctx context.Context) (events.StageComplete, error)
}

// Deps holds what the stages are built from. Embedder and Index may be nil
// when only the crawl and process stages are used.
type Deps struct {
	Config   config.Config
	Stores   *cache.Stores
	Fetcher  scraper.TextFetcher
	Embedder embeddings.Embedder
	Index    publisher.Upserter
	Sleeper  fetcher.Sleeper
}

func (d Deps) sleeper() fetcher.Sleeper {
	if d.Sleeper == nil {
		return fetcher.TimerSleeper{}
	}
	return d.Sleeper
}

// CrawlPages caches search-results pages.
func (d Deps) CrawlPages() Stage {
	c := &scraper.SearchCrawler{
		Fetcher:     d.Fetcher,
		URLs:        scraper.NewURLs(d.Config.Source),
		Pages:       d.Stores.Pages,
		MaxPages:    d.Config.Crawler.MaxPages,
		MaxFailures: d.Config.Crawler.MaxConsecutiveFailures,
		Delay:       fetcher.Delay{Floor: d.Config.Crawler.PageDelay, Spread: d.Config.Crawler.PageDelaySpread},
		Sleeper:     d.sleeper(),
	}
	return Stage{Name: "crawl-pages", Run: func(ctx context.Context) (events.StageComplete, error) {
		r, err := c.Run(ctx)
		return crawlEvent("crawl-pages", r), err
	}}
}

// CrawlPosts caches the post fragments listed on cached pages.
func (d Deps) CrawlPosts() Stage {
	c := &scraper.PostCrawler{
		Fetcher: d.Fetcher,
		URLs:    scraper.NewURLs(d.Config.Source),
		Pages:   d.Stores.Pages,
		Posts:   d.Stores.Posts,
		Delay:   fetcher.Delay{Floor: d.Config.Crawler.PostDelay, Spread: d.Config.Crawler.PostDelaySpread},
		Sleeper: d.sleeper(),
	}
	return Stage{Name: "crawl-posts", Run: func(ctx context.Context) (events.StageComplete, error) {
		r, err := c.Run(ctx)
		return crawlEvent("crawl-posts", r), err
	}}
}

func crawlEvent(name string, r *scraper.Result) events.StageComplete {
	ev := events.StageComplete{Stage: name}
	if r != nil {
		ev.Processed = r.Fetched
		ev.Skipped = r.Skipped
		ev.Failed = r.Invalid + len(r.Errors)
		ev.Errors = r.Errors
	}
	return ev
}

// Process normalizes cached posts.
func (d Deps) Process() Stage {
	p := processor.New(d.Stores)
	return Stage{Name: "process", Run: func(ctx context.Context) (events.StageComplete, error) {
		r, err := p.Run(ctx)
		ev := events.StageComplete{Stage: "process"}
		if r != nil {
			ev.Processed, ev.Skipped, ev.Failed, ev.Errors = r.Processed, r.Skipped, r.Failed, r.Errors
		}
		return ev, err
	}}
}

// Embed embeds processed posts that have no embedding yet.
func (d Deps) Embed() Stage {
	cfg := d.Config.Embeddings
	b := &embeddings.Batcher{
		Client:     d.Embedder,
		Processed:  d.Stores.Processed,
		Embeddings: d.Stores.Embeddings,
		BatchSize:  cfg.BatchSize,
		Interval:   cfg.Interval,
		CostPer1K:  cfg.CostPer1K,
		Retry: fetcher.RetryConfig{
			MaxAttempts: cfg.MaxAttempts,
			InitialWait: cfg.RetryWait,
			MaxWait:     cfg.RetryMaxWait,
			Jitter:      true,
		},
		Sleeper: d.sleeper(),
	}
	return Stage{Name: "embed", Run: func(ctx context.Context) (events.StageComplete, error) {
		r, err := b.Run(ctx)
		ev := events.StageComplete{Stage: "embed"}
		if r != nil {
			ev.Processed = r.Embedded
			ev.Tokens, ev.Cost = r.Tokens, r.Cost
		}
		return ev, err
	}}
}

// Publish upserts all embeddings into the index.
func (d Deps) Publish(onlyTruncated bool) Stage {
	cfg := d.Config.Index
	p := &publisher.Publisher{
		Index:         d.Index,
		Embeddings:    d.Stores.Embeddings,
		Namespace:     cfg.Namespace,
		Poster:        cfg.Poster,
		BatchSize:     cfg.BatchSize,
		MetadataLimit: cfg.MetadataLimit,
		Interval:      cfg.Interval,
		Sleeper:       d.sleeper(),
		OnlyTruncated: onlyTruncated,
	}
	return Stage{Name: "publish", Run: func(ctx context.Context) (events.StageComplete, error) {
		r, err := p.Run(ctx)
		ev := events.StageComplete{Stage: "publish"}
		if r != nil {
			ev.Processed = r.Vectors
			ev.Failed = len(r.Failed)
			ev.Errors = r.Failed
		}
		return ev, err
	}}
}

// Stages returns the full pipeline in run order.
func (d Deps) Stages() []Stage {
	return []Stage{d.CrawlPages(), d.CrawlPosts(), d.Process(), d.Embed(), d.Publish(false)}
}

// Result holds pipeline execution results.
type Result struct {
	Stages   []events.StageComplete
	Duration time.Duration
}

// Pipeline runs stages in order and reports each one on Events, if set.
type Pipeline struct {
	Events chan<- events.StageComplete
}

// Run executes stages in order and stops at the first stage error.
func (p *Pipeline) Run(ctx context.Context, stages []Stage) (*Result, error) {
	start := time.Now()
	result := &Result{}

	for _, stage := range stages {
		slog.Info("stage starting", "stage", stage.Name)
		stageStart := time.Now()

		ev, err := stage.Run(ctx)
		ev.Stage = stage.Name
		ev.Duration = time.Since(stageStart)
		ev.Err = err
		result.Stages = append(result.Stages, ev)
		p.emit(ctx, ev)

		slog.Info("stage complete", "stage", stage.Name, "processed", ev.Processed,
			"skipped", ev.Skipped, "failed", ev.Failed, "duration", ev.Duration)
		if err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("%s: %w", stage.Name, err)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (p *Pipeline) emit(ctx context.Context, ev events.StageComplete) {
	if p.Events == nil {
		return
	}
	select {
	case p.Events <- ev:
	case <-ctx.Done():
	}
}
