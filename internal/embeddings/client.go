// Package embeddings turns processed posts into embedding vectors through an
// OpenAI-compatible embeddings API.
package embeddings

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mfenderov/postseek/internal/fetcher"
)

// Config holds embeddings client configuration.
type Config struct {
	BaseURL string // e.g. "https://api.openai.com/v1"
	APIKey  string
	Model   string // e.g. "text-embedding-ada-002"
}

// Client calls the provider's /embeddings endpoint.
type Client struct {
	fetcher *fetcher.Fetcher
	url     string
	apiKey  string
	model   string
}

// New creates a new embeddings client.
func New(config Config, f *fetcher.Fetcher) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	return &Client{
		fetcher: f,
		url:     strings.TrimSuffix(config.BaseURL, "/") + "/embeddings",
		apiKey:  config.APIKey,
		model:   config.Model,
	}, nil
}

type request struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// Datum is one embedding in a response. Index is the position of its input
// within the request.
type Datum struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// Usage reports billed tokens.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is the provider answer to one Embed call.
type Response struct {
	Data  []Datum `json:"data"`
	Model string  `json:"model"`
	Usage Usage   `json:"usage"`
}

// Embed requests one embedding per input. The provider may return data in any order.
func (c *Client) Embed(ctx context.Context, inputs []string) (*Response, error) {
	slog.Debug("requesting embeddings", "inputs", len(inputs), "model", c.model)

	var resp Response
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := c.fetcher.FetchJSON(ctx, http.MethodPost, c.url, request{Model: c.model, Input: inputs}, headers, &resp); err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embeddings request: got %d vectors for %d inputs", len(resp.Data), len(inputs))
	}
	return &resp, nil
}

// EmbedOne embeds a single text, such as a search query.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return resp.Data[0].Embedding, nil
}

// Dimensions returns the vector length of known models.
func Dimensions(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-ada-002", "text-embedding-3-small":
		return 1536
	default:
		return 1536
	}
}
