// Package analytics aggregates the search server's query log in memory:
// volume, cache hit ratio, latency percentiles and the most frequent plain
// and zero-result queries.
package analytics

import "time"

// SearchEvent describes one answered search request.
type SearchEvent struct {
	Query     string        `json:"query"`
	Mode      string        `json:"mode"`
	Results   int           `json:"results"`
	Latency   time.Duration `json:"latency_ns"`
	CacheHit  bool          `json:"cache_hit"`
	Timestamp time.Time     `json:"timestamp"`
	RequestID string        `json:"request_id,omitempty"`
}
