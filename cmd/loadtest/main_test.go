package main

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 99))
	assert.Equal(t, time.Duration(1), percentile(sorted, 0))
	assert.Equal(t, time.Duration(0), percentile(nil, 50))
}

func TestSearchURL(t *testing.T) {
	raw := searchURL(Config{BaseURL: "http://localhost:8080", Mode: "and", Limit: 5}, "sticks & stones")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/search", u.Path)
	assert.Equal(t, "sticks & stones", u.Query().Get("q"))
	assert.Equal(t, "and", u.Query().Get("mode"))
	assert.Equal(t, "5", u.Query().Get("limit"))
}

func TestReadQueries(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "queries.txt")
	require.NoError(t, os.WriteFile(p, []byte("stones\n\n  words hurt \n"), 0o644))
	got, err := readQueries(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"stones", "words hurt"}, got)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = readQueries(empty)
	assert.Error(t, err)
}

func TestStatsRecord(t *testing.T) {
	s := NewStats()
	s.Record(time.Millisecond, 200, &searchSummary{Total: 0, Cached: true})
	s.Record(time.Millisecond, 503, nil)
	s.RecordError()
	assert.Equal(t, int64(3), s.totalRequests.Load())
	assert.Equal(t, int64(1), s.successCount.Load())
	assert.Equal(t, int64(2), s.errorCount.Load())
	assert.Equal(t, int64(1), s.cacheHits.Load())
	assert.Equal(t, int64(1), s.zeroResults.Load())
}
