package index

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/mfenderov/postseek/internal/cache"
	"github.com/mfenderov/postseek/pkg/models"
)

// ErrReadOnly is returned by Local.Upsert.
var ErrReadOnly = errors.New("local index is read-only")

// Local answers queries by brute-force cosine similarity over the embedding
// cache. It needs no external service and suits small corpora and debugging.
type Local struct {
	embeddings *cache.Store
	poster     string
}

// NewLocal creates a Local index over the embedding store.
func NewLocal(embeddings *cache.Store, poster string) *Local {
	return &Local{embeddings: embeddings, poster: poster}
}

// Upsert always fails: the embedding cache is the index.
func (l *Local) Upsert(context.Context, string, []models.Vector) error {
	return ErrReadOnly
}

// Query scores every cached embedding against req.Vector. Namespace is ignored.
func (l *Local) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	values, err := l.embeddings.Values(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]models.Match, 0, len(values))
	for _, raw := range values {
		var post models.EmbeddedPost
		if err := json.Unmarshal(raw, &post); err != nil {
			return nil, fmt.Errorf("decode embedding: %w", err)
		}
		score, ok := Cosine(req.Vector, post.Embedding)
		if !ok {
			continue
		}

		m := models.Match{ID: strconv.FormatInt(post.ID, 10), Score: score}
		if req.IncludeMetadata {
			meta := models.Metadata{
				Title:   post.Title,
				When:    post.When,
				Utime:   post.Utime,
				First:   post.First,
				Last:    post.Last,
				Content: post.Content,
				Forum:   post.Forum,
				Poster:  l.poster,
			}
			m.Metadata = &meta
		}
		if req.IncludeValues {
			m.Values = post.Embedding
		}
		matches = append(matches, m)
	}

	slices.SortStableFunc(matches, func(a, b models.Match) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if req.TopK > 0 && len(matches) > req.TopK {
		matches = matches[:req.TopK]
	}
	return &models.QueryResponse{Matches: matches, Namespace: req.Namespace}, nil
}

// Cosine returns the cosine similarity of a and b. It reports false when the
// lengths differ or either vector is zero.
func Cosine(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
