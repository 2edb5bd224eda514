package embeddings

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/mfenderov/postseek/internal/cache"
	"github.com/mfenderov/postseek/internal/fetcher"
	"github.com/mfenderov/postseek/internal/markdown"
	"github.com/mfenderov/postseek/internal/metrics"
	"github.com/mfenderov/postseek/pkg/models"
)

const stage = "embed"

// Embedder is the provider call the Batcher makes per batch.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) (*Response, error)
}

// Result summarizes an embedding run.
type Result struct {
	Pending  int
	Embedded int
	Batches  int
	Tokens   int
	Cost     float64 // estimated, in dollars
}

// Batcher embeds every processed post that has no cached embedding.
type Batcher struct {
	Client     Embedder
	Processed  *cache.Store
	Embeddings *cache.Store
	BatchSize  int
	Interval   time.Duration // pause between batches
	CostPer1K  float64
	Retry      fetcher.RetryConfig
	Sleeper    fetcher.Sleeper
}

// Run embeds pending posts batch by batch. A batch that still fails after
// retries stops the run; batches already done stay cached.
func (b *Batcher) Run(ctx context.Context) (*Result, error) {
	pending, err := b.pending(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{Pending: len(pending)}
	slog.Info("embedding posts", "pending", len(pending), "batch_size", b.BatchSize)
	if len(pending) == 0 {
		return result, nil
	}

	size := b.BatchSize
	if size <= 0 {
		size = 100
	}

	offset := 0
	for batch := range slices.Chunk(pending, size) {
		inputs := make([]string, len(batch))
		for i, post := range batch {
			text, err := markdown.EmbeddingInput(post)
			if err != nil {
				return result, fmt.Errorf("post %d: %w", post.ID, err)
			}
			inputs[i] = text
		}

		var resp *Response
		err := fetcher.Retry(ctx, b.Retry, b.Sleeper, func(ctx context.Context) error {
			var err error
			resp, err = b.Client.Embed(ctx, inputs)
			return err
		})
		if err != nil {
			metrics.ObserveItem(stage, metrics.Failed)
			return result, fmt.Errorf("embed batch %d-%d: %w", offset, offset+len(batch), err)
		}

		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) {
				return result, fmt.Errorf("embed batch %d-%d: provider index %d out of range", offset, offset+len(batch), d.Index)
			}
			// d.Index is relative to the batch, pending spans the whole run
			embedded := models.EmbeddedPost{Post: pending[offset+d.Index], Embedding: d.Embedding}
			if err := b.Embeddings.Set(ctx, cache.Embeddings.Key(embedded.ID), embedded); err != nil {
				return result, err
			}
			result.Embedded++
			metrics.ObserveItem(stage, metrics.Processed)
		}
		offset += len(batch)

		result.Batches++
		result.Tokens += resp.Usage.TotalTokens
		metrics.ObserveTokens(resp.Usage.TotalTokens)
		slog.Info("batch embedded", "done", offset, "total", len(pending), "tokens", resp.Usage.TotalTokens)

		if offset < len(pending) {
			if err := b.Sleeper.Sleep(ctx, b.Interval); err != nil {
				return result, err
			}
		}
	}

	result.Cost = float64(result.Tokens) / 1000 * b.CostPer1K
	return result, nil
}

// pending returns processed posts without an embedding, ordered by id.
func (b *Batcher) pending(ctx context.Context) ([]models.Post, error) {
	keys, err := b.Embeddings.Keys(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[int64]bool, len(keys))
	for _, id := range cache.Embeddings.IDs(keys) {
		done[id] = true
	}

	values, err := b.Processed.Values(ctx)
	if err != nil {
		return nil, err
	}

	var pending []models.Post
	for _, raw := range values {
		var post models.Post
		if err := json.Unmarshal(raw, &post); err != nil {
			return nil, fmt.Errorf("decode processed post: %w", err)
		}
		if done[post.ID] {
			continue
		}
		pending = append(pending, post)
	}
	slices.SortFunc(pending, func(a, b models.Post) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return pending, nil
}
