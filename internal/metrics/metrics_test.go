package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	Init()
	Init()

	if itemsTotal == nil || embeddingTokensTotal == nil || publishBatchesTotal == nil ||
		searchRequestsTotal == nil || searchCacheTotal == nil || searchDuration == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserve(t *testing.T) {
	Init()

	items := itemsTotal.WithLabelValues("crawl-pages", Fetched)
	before := testutil.ToFloat64(items)
	ObserveItem("crawl-pages", Fetched)
	ObserveItem("crawl-pages", Fetched)
	if got := testutil.ToFloat64(items); got != before+2 {
		t.Errorf("items = %f, want %f", got, before+2)
	}

	tokens := testutil.ToFloat64(embeddingTokensTotal)
	ObserveTokens(150)
	if got := testutil.ToFloat64(embeddingTokensTotal); got != tokens+150 {
		t.Errorf("tokens = %f, want %f", got, tokens+150)
	}

	failedBatches := publishBatchesTotal.WithLabelValues(Failed)
	failed := testutil.ToFloat64(failedBatches)
	ObservePublishBatch(false)
	if got := testutil.ToFloat64(failedBatches); got != failed+1 {
		t.Errorf("failed batches = %f, want %f", got, failed+1)
	}

	bad := searchRequestsTotal.WithLabelValues("400")
	was := testutil.ToFloat64(bad)
	ObserveSearch(400, 0.01)
	if got := testutil.ToFloat64(bad); got != was+1 {
		t.Errorf("400 responses = %f, want %f", got, was+1)
	}
}

func TestHandler(t *testing.T) {
	ObserveSearchCache("hit")

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "postseek_search_cache_total") {
		t.Error("exposition is missing postseek_search_cache_total")
	}
}
