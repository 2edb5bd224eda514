// Package elasticsearch stores post vectors in an Elasticsearch dense_vector
// index and answers nearest-neighbour queries with kNN search.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/mfenderov/postseek/pkg/models"
)

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses  []string
	Index      string
	Username   string
	Password   string
	Dimensions int
}

// Client wraps the Elasticsearch client with vector index operations.
type Client struct {
	es         *elasticsearch.Client
	index      string
	dimensions int
}

// New creates a new Elasticsearch client.
func New(config Config) (*Client, error) {
	if config.Index == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if config.Dimensions <= 0 {
		config.Dimensions = 1536
	}

	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Client{
		es:         es,
		index:      config.Index,
		dimensions: config.Dimensions,
	}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// indexMapping defines the ES index mapping for post vectors.
// Namespaces share one index and are separated by a keyword filter.
const indexMapping = `{
	"mappings": {
		"properties": {
			"id": { "type": "keyword" },
			"namespace": { "type": "keyword" },
			"title": { "type": "text" },
			"content": { "type": "text", "analyzer": "english" },
			"forum": { "type": "keyword" },
			"poster": { "type": "keyword" },
			"when": { "type": "long" },
			"first": { "type": "long" },
			"last": { "type": "long" },
			"utime": { "type": "keyword" },
			"removedContent": { "type": "boolean" },
			"embedding": {
				"type": "dense_vector",
				"dims": %d,
				"index": true,
				"similarity": "cosine"
			}
		}
	}
}`

// CreateIndex creates the index with the vector mapping if it does not exist.
func (c *Client) CreateIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	mapping := fmt.Sprintf(indexMapping, c.dimensions)
	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader([]byte(mapping))),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// Refresh forces an index refresh (useful for testing).
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// document is the stored form of a vector.
type document struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	models.Metadata
	Embedding []float32 `json:"embedding,omitempty"`
}

func docID(namespace, id string) string {
	return namespace + ":" + id
}

// bulkResponse is the part of the _bulk answer needed to find failed items.
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// Upsert indexes vectors under namespace with one _bulk request.
// Any failed item fails the whole call.
func (c *Client) Upsert(ctx context.Context, namespace string, vectors []models.Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, v := range vectors {
		action := map[string]any{"index": map[string]any{"_index": c.index, "_id": docID(namespace, v.ID)}}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("failed to marshal bulk action: %w", err)
		}
		if err := enc.Encode(document{ID: v.ID, Namespace: namespace, Metadata: v.Metadata, Embedding: v.Values}); err != nil {
			return fmt.Errorf("failed to marshal vector %s: %w", v.ID, err)
		}
	}

	res, err := c.es.Bulk(
		bytes.NewReader(body.Bytes()),
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(c.index),
	)
	if err != nil {
		return fmt.Errorf("bulk upsert failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk upsert error: %s", res.String())
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !br.Errors {
		return nil
	}

	failed := 0
	var first string
	for _, item := range br.Items {
		for _, result := range item {
			if result.Error == nil {
				continue
			}
			if failed == 0 {
				first = fmt.Sprintf("%s: %s: %s", result.ID, result.Error.Type, result.Error.Reason)
			}
			failed++
		}
	}
	return fmt.Errorf("bulk upsert: %d of %d items failed, first: %s", failed, len(vectors), first)
}

// searchResponse represents ES search response structure.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64  `json:"_score"`
			Source document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Query runs a kNN search restricted to req.Namespace.
func (c *Client) Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	candidates := max(req.TopK*5, 100)
	searchQuery := map[string]any{
		"knn": map[string]any{
			"field":          "embedding",
			"query_vector":   req.Vector,
			"k":              req.TopK,
			"num_candidates": candidates,
			"filter": map[string]any{
				"term": map[string]any{"namespace": req.Namespace},
			},
		},
		"size": req.TopK,
	}
	if !req.IncludeValues {
		searchQuery["_source"] = map[string]any{"excludes": []string{"embedding"}}
	}

	data, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("knn search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("knn search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	resp := &models.QueryResponse{Namespace: req.Namespace, Matches: make([]models.Match, 0, len(sr.Hits.Hits))}
	for _, hit := range sr.Hits.Hits {
		m := models.Match{ID: hit.Source.ID, Score: hit.Score}
		if req.IncludeMetadata {
			meta := hit.Source.Metadata
			m.Metadata = &meta
		}
		if req.IncludeValues {
			m.Values = hit.Source.Embedding
		}
		resp.Matches = append(resp.Matches, m)
	}
	return resp, nil
}
