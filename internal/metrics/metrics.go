// Package metrics exposes Prometheus collectors for the pipeline stages and the search API.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded by ObserveItem.
const (
	Fetched   = "fetched"
	Processed = "processed"
	Skipped   = "skipped"
	Invalid   = "invalid"
	Failed    = "failed"
)

var (
	itemsTotal           *prometheus.CounterVec
	embeddingTokensTotal prometheus.Counter
	publishBatchesTotal  *prometheus.CounterVec
	searchRequestsTotal  *prometheus.CounterVec
	searchCacheTotal     *prometheus.CounterVec
	searchDuration       prometheus.Histogram

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times.
func Init() {
	once.Do(func() {
		itemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postseek_items_total",
				Help: "Items handled by a pipeline stage, labeled by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		)

		embeddingTokensTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "postseek_embedding_tokens_total",
				Help: "Tokens billed by the embedding provider.",
			},
		)

		publishBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postseek_publish_batches_total",
				Help: "Vector upsert batches, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		searchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postseek_search_requests_total",
				Help: "Search API requests, labeled by response code.",
			},
			[]string{"code"},
		)

		searchCacheTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postseek_search_cache_total",
				Help: "Search result cache lookups, labeled by result.",
			},
			[]string{"result"},
		)

		searchDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "postseek_search_duration_seconds",
				Help:    "Histogram of search latencies, including embedding the query.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveItem counts one item handled by stage.
func ObserveItem(stage, outcome string) {
	Init()
	itemsTotal.WithLabelValues(stage, outcome).Inc()
}

// ObserveTokens adds billed embedding tokens.
func ObserveTokens(n int) {
	Init()
	embeddingTokensTotal.Add(float64(n))
}

// ObservePublishBatch counts one upsert batch.
func ObservePublishBatch(ok bool) {
	Init()
	outcome := "ok"
	if !ok {
		outcome = Failed
	}
	publishBatchesTotal.WithLabelValues(outcome).Inc()
}

// ObserveSearch records one search API response.
func ObserveSearch(code int, seconds float64) {
	Init()
	searchRequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	searchDuration.Observe(seconds)
}

// ObserveSearchCache records a result cache lookup: "hit", "miss" or "error".
func ObserveSearchCache(result string) {
	Init()
	searchCacheTotal.WithLabelValues(result).Inc()
}
