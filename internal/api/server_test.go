package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mfenderov/postseek/internal/config"
	"github.com/mfenderov/postseek/internal/search"
	"github.com/mfenderov/postseek/pkg/models"
)

type fakeSearcher struct {
	query string
	err   error
}

func (f *fakeSearcher) Search(_ context.Context, query string) (*models.QueryResponse, error) {
	f.query = query
	if f.err != nil {
		return nil, f.err
	}
	return &models.QueryResponse{
		Namespace: "rr-posts",
		Matches:   []models.Match{{ID: "42", Score: 0.9, Metadata: &models.Metadata{Title: "Agar"}}},
	}, nil
}

const cacheControl = "public, max-age=60, s-maxage=86400"

func do(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSearch_OK(t *testing.T) {
	searcher := &fakeSearcher{}
	rec := do(t, NewServer(searcher, nil, cacheControl), "/api/search?query=storing+spores")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Cache-Control"); got != cacheControl {
		t.Errorf("Cache-Control = %q", got)
	}
	if searcher.query != "storing spores" {
		t.Errorf("query = %q", searcher.query)
	}

	var resp models.QueryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Matches) != 1 || resp.Matches[0].ID != "42" {
		t.Errorf("response = %+v", resp)
	}
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name      string
		searchErr error
		configErr error
		wantCode  int
		wantBody  string
	}{
		{
			name:      "invalid query",
			searchErr: fmt.Errorf("%w: query is empty", search.ErrInvalidQuery),
			wantCode:  http.StatusBadRequest,
			wantBody:  "query is empty",
		},
		{
			name:      "missing provider config",
			configErr: fmt.Errorf("%w: embeddings.api_key (OPENAI_API_KEY)", config.ErrMissingSetting),
			wantCode:  http.StatusBadRequest,
			wantBody:  "OPENAI_API_KEY",
		},
		{
			name:      "provider failure",
			searchErr: errors.New("pinecone query: http 503"),
			wantCode:  http.StatusInternalServerError,
			wantBody:  "search failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, NewServer(&fakeSearcher{err: tt.searchErr}, tt.configErr, cacheControl), "/api/search?query=x")
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want %q", rec.Body, tt.wantBody)
			}
			if rec.Header().Get("Cache-Control") != "" {
				t.Error("error responses must not be cacheable")
			}
		})
	}
}

func TestSearch_WithService(t *testing.T) {
	svc := &search.Service{MaxQueryLength: 200}
	rec := do(t, NewServer(svc, nil, cacheControl), "/api/search?query="+strings.Repeat("a", 201))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an overlong query", rec.Code)
	}

	rec = do(t, NewServer(svc, nil, cacheControl), "/api/search")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a missing query", rec.Code)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	s := NewServer(&fakeSearcher{}, nil, cacheControl)

	if rec := do(t, s, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("/healthz status = %d", rec.Code)
	}
	do(t, s, "/api/search?query=x")
	rec := do(t, s, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "postseek_search_requests_total") {
		t.Errorf("/metrics status = %d", rec.Code)
	}
}
