package analytics

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

const topQueries = 10

type Stats struct {
	TotalSearches     int64            `json:"total_searches"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	SearchesByMode    map[string]int64 `json:"searches_by_mode"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      float64          `json:"p50_latency_ms"`
	P95LatencyMs      float64          `json:"p95_latency_ms"`
	P99LatencyMs      float64          `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type Aggregator struct {
	mu                sync.Mutex
	totalSearches     int64
	cacheHits         int64
	zeroResults       int64
	byMode            map[string]int64
	latencies         []time.Duration
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
	now               func() time.Time
	logger            *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byMode:            make(map[string]int64),
		latencies:         make([]time.Duration, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		now:               time.Now,
		logger:            slog.Default().With("component", "analytics"),
	}
}

// Record adds one search to the aggregate. Queries are counted by their
// lower-cased, whitespace-collapsed form.
func (a *Aggregator) Record(event SearchEvent) {
	query := strings.Join(strings.Fields(strings.ToLower(event.Query)), " ")

	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalSearches++
	a.byMode[event.Mode]++
	if event.CacheHit {
		a.cacheHits++
	}
	if event.Results == 0 {
		a.zeroResults++
		a.zeroResultQueries[query]++
	}
	a.queryCounts[query]++

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.Latency)
	} else {
		a.latencies[a.next] = event.Latency
		a.next = (a.next + 1) % maxLatencySamples
	}
}

func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := Stats{
		TotalSearches:     a.totalSearches,
		CacheHits:         a.cacheHits,
		CacheMisses:       a.totalSearches - a.cacheHits,
		ZeroResultCount:   a.zeroResults,
		SearchesByMode:    make(map[string]int64, len(a.byMode)),
		TopQueries:        topN(a.queryCounts, topQueries),
		ZeroResultQueries: topN(a.zeroResultQueries, topQueries),
	}
	for mode, n := range a.byMode {
		stats.SearchesByMode[mode] = n
	}

	if len(a.latencies) > 0 {
		sorted := append([]time.Duration(nil), a.latencies...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		var sum time.Duration
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = ms(sum) / float64(len(sorted))
		stats.P50LatencyMs = ms(percentile(sorted, 50))
		stats.P95LatencyMs = ms(percentile(sorted, 95))
		stats.P99LatencyMs = ms(percentile(sorted, 99))
	}
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.totalSearches) / elapsed
	}
	return stats
}

// Handler serves Stats as JSON.
func (a *Aggregator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(a.Stats()); err != nil {
			a.logger.Error("failed to write analytics response", "error", err)
		}
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func percentile(sorted []time.Duration, pct int) time.Duration {
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent queries. Equal counts are ordered by
// query text so the output is deterministic.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
