package index

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mfenderov/postseek/internal/fetcher"
	"github.com/mfenderov/postseek/pkg/models"
)

// Pinecone talks to a Pinecone index over its REST data plane.
type Pinecone struct {
	fetcher *fetcher.Fetcher
	baseURL string
	apiKey  string
}

// NewPinecone creates a client for the index at host (with or without scheme).
func NewPinecone(host, apiKey string, f *fetcher.Fetcher) (*Pinecone, error) {
	if host == "" {
		return nil, fmt.Errorf("index URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	base := strings.TrimSuffix(host, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return &Pinecone{fetcher: f, baseURL: base, apiKey: apiKey}, nil
}

type upsertRequest struct {
	Vectors   []models.Vector `json:"vectors"`
	Namespace string          `json:"namespace"`
}

type upsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

func (p *Pinecone) headers() map[string]string {
	return map[string]string{"Api-Key": p.apiKey}
}

// Upsert inserts or replaces vectors in namespace.
func (p *Pinecone) Upsert(ctx context.Context, namespace string, vectors []models.Vector) error {
	var resp upsertResponse
	err := p.fetcher.FetchJSON(ctx, http.MethodPost, p.baseURL+"/vectors/upsert",
		upsertRequest{Vectors: vectors, Namespace: namespace}, p.headers(), &resp)
	if err != nil {
		return fmt.Errorf("pinecone upsert: %w", err)
	}
	if resp.UpsertedCount != len(vectors) {
		return fmt.Errorf("pinecone upsert: upserted %d of %d vectors", resp.UpsertedCount, len(vectors))
	}
	return nil
}

// Query returns the nearest vectors to req.Vector.
func (p *Pinecone) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	var resp models.QueryResponse
	if err := p.fetcher.FetchJSON(ctx, http.MethodPost, p.baseURL+"/query", req, p.headers(), &resp); err != nil {
		return nil, fmt.Errorf("pinecone query: %w", err)
	}
	return &resp, nil
}
