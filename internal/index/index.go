// Package index is the vector index behind publishing and search.
package index

import (
	"context"
	"fmt"

	"github.com/mfenderov/postseek/internal/cache"
	"github.com/mfenderov/postseek/internal/config"
	"github.com/mfenderov/postseek/internal/elasticsearch"
	"github.com/mfenderov/postseek/internal/embeddings"
	"github.com/mfenderov/postseek/internal/fetcher"
	"github.com/mfenderov/postseek/pkg/models"
)

// Index stores vectors and answers nearest-neighbour queries.
type Index interface {
	Upsert(ctx context.Context, namespace string, vectors []models.Vector) error
	Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error)
}

// New builds the backend selected by cfg.Index.Backend. The local backend
// reads the embedding cache and cannot be published to.
func New(ctx context.Context, cfg config.Config, stores *cache.Stores, f *fetcher.Fetcher) (Index, error) {
	switch cfg.Index.Backend {
	case "pinecone":
		return NewPinecone(cfg.Index.URL, cfg.Index.APIKey, f)
	case "elasticsearch":
		client, err := elasticsearch.New(esConfig(cfg))
		if err != nil {
			return nil, err
		}
		if err := client.CreateIndex(ctx); err != nil {
			return nil, err
		}
		return client, nil
	case "local":
		return NewLocal(stores.Embeddings, cfg.Index.Poster), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}

// esConfig maps the index settings to the ES client. Unset dimensions follow
// the embedding model.
func esConfig(cfg config.Config) elasticsearch.Config {
	es := cfg.Index.Elasticsearch
	dims := es.Dimensions
	if dims <= 0 {
		dims = embeddings.Dimensions(cfg.Embeddings.Model)
	}
	return elasticsearch.Config{
		Addresses:  es.Addresses,
		Index:      es.Index,
		Username:   es.Username,
		Password:   es.Password,
		Dimensions: dims,
	}
}
