// Package publisher upserts cached embeddings into the vector index.
package publisher

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mfenderov/postseek/internal/cache"
	"github.com/mfenderov/postseek/internal/fetcher"
	"github.com/mfenderov/postseek/internal/metrics"
	"github.com/mfenderov/postseek/pkg/models"
)

const stage = "publish"

// ErrPartialPublish is returned when at least one upsert batch failed.
var ErrPartialPublish = errors.New("some vector batches failed to upsert")

// Upserter is the index operation the publisher needs.
type Upserter interface {
	Upsert(ctx context.Context, namespace string, vectors []models.Vector) error
}

// ToVector maps an embedded post to its index record.
func ToVector(post models.EmbeddedPost, poster string) models.Vector {
	return models.Vector{
		ID: strconv.FormatInt(post.ID, 10),
		Metadata: models.Metadata{
			Title:   post.Title,
			When:    post.When,
			Utime:   post.Utime,
			First:   post.First,
			Last:    post.Last,
			Content: post.Content,
			Forum:   post.Forum,
			Poster:  poster,
		},
		Values: post.Embedding,
	}
}

// Guard drops the content of v when its serialized metadata exceeds limit
// bytes, and reports whether it did.
func Guard(v models.Vector, limit int) (models.Vector, bool, error) {
	size, err := MetadataSize(v.Metadata)
	if err != nil {
		return v, false, fmt.Errorf("encode metadata %s: %w", v.ID, err)
	}
	if limit <= 0 || size <= limit {
		return v, false, nil
	}
	v.Metadata.Content = ""
	v.Metadata.RemovedContent = true
	return v, true, nil
}

// MetadataSize is the byte length of m serialized as compact JSON with
// markup characters written as-is.
func MetadataSize(m models.Metadata) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return 0, err
	}
	return len(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// Result summarizes a publish run.
type Result struct {
	Vectors   int
	Truncated int
	Batches   int
	Failed    []string // index ranges "i-j" of failed batches
}

// Publisher upserts every cached embedding in fixed-size batches.
type Publisher struct {
	Index         Upserter
	Embeddings    *cache.Store
	Namespace     string
	Poster        string
	BatchSize     int
	MetadataLimit int
	Interval      time.Duration
	Sleeper       fetcher.Sleeper
	OnlyTruncated bool // publish only vectors whose content was dropped
}

// Run publishes all embeddings. A failed batch is recorded and skipped; the
// run returns ErrPartialPublish after the last batch if any failed.
func (p *Publisher) Run(ctx context.Context) (*Result, error) {
	vectors, truncated, err := p.vectors(ctx)
	if err != nil {
		return nil, err
	}
	result := &Result{Vectors: len(vectors), Truncated: truncated}

	size := p.BatchSize
	if size <= 0 {
		size = 100
	}

	for i := 0; i < len(vectors); i += size {
		batch := vectors[i:min(i+size, len(vectors))]
		result.Batches++

		if err := p.Index.Upsert(ctx, p.Namespace, batch); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			span := fmt.Sprintf("%d-%d", i, i+len(batch))
			slog.Error("upsert failed", "range", span, "error", err)
			result.Failed = append(result.Failed, span)
			metrics.ObservePublishBatch(false)
		} else {
			metrics.ObservePublishBatch(true)
			for range batch {
				metrics.ObserveItem(stage, metrics.Processed)
			}
		}
		slog.Info("upserted", "done", i+len(batch), "total", len(vectors))

		if i+len(batch) < len(vectors) {
			if err := p.Sleeper.Sleep(ctx, p.Interval); err != nil {
				return result, err
			}
		}
	}

	if len(result.Failed) > 0 {
		return result, fmt.Errorf("%w: %d batches (%s)", ErrPartialPublish, len(result.Failed), strings.Join(result.Failed, ", "))
	}
	return result, nil
}

// vectors loads, maps and guards all embeddings, ordered by post id.
func (p *Publisher) vectors(ctx context.Context) ([]models.Vector, int, error) {
	values, err := p.Embeddings.Values(ctx)
	if err != nil {
		return nil, 0, err
	}

	posts := make([]models.EmbeddedPost, 0, len(values))
	for _, raw := range values {
		var post models.EmbeddedPost
		if err := json.Unmarshal(raw, &post); err != nil {
			return nil, 0, fmt.Errorf("decode embedding: %w", err)
		}
		posts = append(posts, post)
	}
	slices.SortFunc(posts, func(a, b models.EmbeddedPost) int {
		return cmp.Compare(a.ID, b.ID)
	})

	vectors := make([]models.Vector, 0, len(posts))
	truncated := 0
	for _, post := range posts {
		v, dropped, err := Guard(ToVector(post, p.Poster), p.MetadataLimit)
		if err != nil {
			return nil, 0, err
		}
		if dropped {
			slog.Info("removing content due to metadata size", "id", v.ID)
			truncated++
		}
		if p.OnlyTruncated && !dropped {
			continue
		}
		vectors = append(vectors, v)
	}
	return vectors, truncated, nil
}
