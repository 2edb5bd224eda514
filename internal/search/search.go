// Package search answers free-text queries by embedding the query and
// asking the vector index for its nearest posts.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mfenderov/postseek/internal/metrics"
	"github.com/mfenderov/postseek/pkg/models"
)

// ErrInvalidQuery is returned for empty or overlong queries.
var ErrInvalidQuery = errors.New("invalid query")

// Embedder embeds a single text.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Querier runs a nearest-neighbour query.
type Querier interface {
	Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error)
}

// Service runs searches with fixed index parameters.
type Service struct {
	Embedder       Embedder
	Index          Querier
	Cache          ResultCache
	Namespace      string
	TopK           int
	MaxQueryLength int
}

// Validate trims query and checks its length in characters.
func (s *Service) Validate(query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", fmt.Errorf("%w: query is empty", ErrInvalidQuery)
	}
	if s.MaxQueryLength > 0 && utf8.RuneCountInString(q) > s.MaxQueryLength {
		return "", fmt.Errorf("%w: query is longer than %d characters", ErrInvalidQuery, s.MaxQueryLength)
	}
	return q, nil
}

// Search returns the index matches for query. Result cache failures are
// logged and ignored.
func (s *Service) Search(ctx context.Context, query string) (*models.QueryResponse, error) {
	q, err := s.Validate(query)
	if err != nil {
		return nil, err
	}

	c := s.Cache
	if c == nil {
		c = NopCache{}
	}

	cached, ok, err := c.Get(ctx, q)
	switch {
	case err != nil:
		slog.Warn("result cache read failed", "error", err)
		metrics.ObserveSearchCache("error")
	case ok:
		metrics.ObserveSearchCache("hit")
		return cached, nil
	default:
		metrics.ObserveSearchCache("miss")
	}

	vector, err := s.Embedder.EmbedOne(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	resp, err := s.Index.Query(ctx, models.QueryRequest{
		Namespace:       s.Namespace,
		TopK:            s.TopK,
		IncludeMetadata: true,
		IncludeValues:   false,
		Vector:          vector,
	})
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	if err := c.Set(ctx, q, resp); err != nil {
		slog.Warn("result cache write failed", "error", err)
	}
	return resp, nil
}
