package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/mfenderov/postseek/internal/cache"
	"github.com/mfenderov/postseek/internal/config"
	"github.com/mfenderov/postseek/internal/embeddings"
	"github.com/mfenderov/postseek/internal/events"
	"github.com/mfenderov/postseek/internal/fetcher"
	"github.com/mfenderov/postseek/internal/index"
	"github.com/mfenderov/postseek/internal/pipeline"
	"github.com/mfenderov/postseek/internal/search"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newFetcher(cfg config.Config) *fetcher.Fetcher {
	return fetcher.New(fetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.Crawler.Timeout,
	})
}

func newEmbeddings(cfg config.Config, f *fetcher.Fetcher) (*embeddings.Client, error) {
	client, err := embeddings.New(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		APIKey:  cfg.Embeddings.APIKey,
		Model:   cfg.Embeddings.Model,
	}, f)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings client: %w", err)
	}
	return client, nil
}

// buildDeps opens the cache and, for each need, the matching provider.
func buildDeps(ctx context.Context, cfg config.Config, needs ...config.Need) (pipeline.Deps, error) {
	if err := cfg.Require(needs...); err != nil {
		return pipeline.Deps{}, err
	}

	stores, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return pipeline.Deps{}, fmt.Errorf("failed to open cache: %w", err)
	}
	slog.Debug("cache opened", "backend", cfg.Cache.Backend)

	f := newFetcher(cfg)
	deps := pipeline.Deps{Config: cfg, Stores: stores, Fetcher: f}

	for _, n := range needs {
		switch n {
		case config.NeedEmbeddings:
			client, err := newEmbeddings(cfg, f)
			if err != nil {
				return pipeline.Deps{}, err
			}
			deps.Embedder = client
		case config.NeedIndex:
			idx, err := index.New(ctx, cfg, stores, f)
			if err != nil {
				return pipeline.Deps{}, fmt.Errorf("failed to create index: %w", err)
			}
			deps.Index = idx
		}
	}
	return deps, nil
}

// newSearchService wires the query path. The result cache is Redis when
// enabled and a no-op otherwise.
func newSearchService(ctx context.Context, cfg config.Config, stores *cache.Stores) (*search.Service, error) {
	f := newFetcher(cfg)
	client, err := newEmbeddings(cfg, f)
	if err != nil {
		return nil, err
	}
	idx, err := index.New(ctx, cfg, stores, f)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	var resultCache search.ResultCache = search.NopCache{}
	if cfg.Redis.Enabled {
		rdb, err := search.NewRedisClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Warn("redis unavailable, searching without result cache", "error", err)
		} else {
			resultCache = search.NewRedisCache(rdb, cfg.Search.CacheTTL)
		}
	}

	return &search.Service{
		Embedder:       client,
		Index:          idx,
		Cache:          resultCache,
		Namespace:      cfg.Index.Namespace,
		TopK:           cfg.Search.TopK,
		MaxQueryLength: cfg.Search.MaxQueryLength,
	}, nil
}

// runStages runs stages through the pipeline and prints a summary per stage.
func runStages(ctx context.Context, stages ...pipeline.Stage) error {
	ch := make(chan events.StageComplete, len(stages))
	p := &pipeline.Pipeline{Events: ch}

	result, err := p.Run(ctx, stages)
	close(ch)

	for ev := range ch {
		printStage(ev)
	}
	if result != nil && len(result.Stages) > 1 {
		fmt.Printf("\nPipeline finished in %s\n", result.Duration.Round(time.Millisecond))
	}
	return err
}

func printStage(ev events.StageComplete) {
	fmt.Printf("%s: %d done, %d skipped, %d failed (%s)\n",
		ev.Stage, ev.Processed, ev.Skipped, ev.Failed, ev.Duration.Round(time.Millisecond))
	if ev.Tokens > 0 {
		fmt.Printf("  tokens: %d, estimated cost: $%.4f\n", ev.Tokens, ev.Cost)
	}
	for _, e := range ev.Errors {
		fmt.Printf("  - %s\n", e)
	}
}
