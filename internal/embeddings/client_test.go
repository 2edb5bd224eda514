package embeddings

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mfenderov/postseek/internal/fetcher"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"empty base url", Config{APIKey: "k", Model: "m"}, true},
		{"empty api key", Config{BaseURL: "http://x", Model: "m"}, true},
		{"empty model", Config{BaseURL: "http://x", APIKey: "k"}, true},
		{"valid config", Config{BaseURL: "http://x", APIKey: "k", Model: "m"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config, fetcher.New(fetcher.Config{}))
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDimensions(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"text-embedding-ada-002", 1536},
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"unknown-model", 1536},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := Dimensions(tt.model); got != tt.want {
				t.Errorf("Dimensions(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestEmbed_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "text-embedding-ada-002" || len(req.Input) != 2 {
			t.Errorf("request = %+v", req)
		}

		json.NewEncoder(w).Encode(Response{
			Data: []Datum{
				{Index: 1, Embedding: []float32{0, 1}},
				{Index: 0, Embedding: []float32{1, 0}},
			},
			Usage: Usage{PromptTokens: 12, TotalTokens: 12},
		})
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL + "/v1/", APIKey: "sk-test", Model: "text-embedding-ada-002"}, fetcher.New(fetcher.Config{}))
	if err != nil {
		t.Fatal(err)
	}

	resp, err := client.Embed(t.Context(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if resp.Usage.TotalTokens != 12 || len(resp.Data) != 2 || resp.Data[0].Index != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestEmbed_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	client, _ := New(Config{BaseURL: server.URL, APIKey: "k", Model: "m"}, fetcher.New(fetcher.Config{}))
	_, err := client.EmbedOne(t.Context(), "query")

	var se *fetcher.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTooManyRequests {
		t.Fatalf("EmbedOne() error = %v, want 429 StatusError", err)
	}
	if !fetcher.Retryable(err) {
		t.Error("429 should be retryable")
	}
}

func TestEmbed_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(Response{Data: []Datum{{Index: 0, Embedding: []float32{1}}}})
	}))
	defer server.Close()

	client, _ := New(Config{BaseURL: server.URL, APIKey: "k", Model: "m"}, fetcher.New(fetcher.Config{}))
	if _, err := client.Embed(t.Context(), []string{"a", "b"}); err == nil {
		t.Error("Embed() should fail when the provider drops inputs")
	}
}
