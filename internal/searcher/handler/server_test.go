package handler_test

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/mem"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer/tables"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/searcher/service"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/middleware"
)

type searchBody struct {
	Mode    string `json:"mode"`
	Total   int    `json:"total"`
	Results []struct {
		QueryTerm   string  `json:"query_term"`
		Original    string  `json:"original"`
		DocumentID  int     `json:"document_id"`
		Path        string  `json:"path"`
		Score       float64 `json:"score"`
		Occurrences []struct {
			Original string `json:"original"`
			Index    int    `json:"index"`
			Line     int    `json:"line"`
		} `json:"occurrences"`
	} `json:"results"`
}

func startServer(t *testing.T) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	fsys, err := mem.NewFS()
	require.NoError(t, err)
	require.NoError(t, hackpadfs.MkdirAll(fsys, "corpus", 0o755))
	docs := map[string]string{
		"corpus/a.txt": "Sticks break.\n\nStones roll",
		"corpus/b.txt": "Stones and sticks may break my bones\nbut words can never hurt me",
		"corpus/c.txt": "Hurtful words linger",
	}
	for name, body := range docs {
		require.NoError(t, hackpadfs.WriteFullFile(fsys, name, []byte(body), 0o644))
	}

	m := metrics.New(prometheus.NewRegistry())
	store, err := tables.NewFileStore(fsys, "data", config.CompressionZstd)
	require.NoError(t, err)
	engine, err := indexer.NewEngine(fsys, "corpus", store, indexer.WithLogger(logger.Discard()), indexer.WithMetrics(m))
	require.NoError(t, err)
	svc := service.New(engine, executor.New(engine, executor.WithLogger(logger.Discard()), executor.WithMetrics(m)), nil)
	_, err = svc.Rebuild(context.Background(), false)
	require.NoError(t, err)

	mux := http.NewServeMux()
	handler.New(svc, nil, 20, 200).Register(mux)
	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	srv := httptest.NewServer(chain)
	t.Cleanup(srv.Close)
	return srv, m
}

func get(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if v != nil {
		require.NoError(t, json.Unmarshal(body, v), string(body))
	}
	return resp
}

func TestSearchOverHTTP(t *testing.T) {
	srv, m := startServer(t)

	var and searchBody
	resp := get(t, srv.URL+"/api/v1/search?q=words+hurt&mode=and", &and)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
	assert.Equal(t, "and", and.Mode)
	require.Equal(t, 4, and.Total)

	// Both terms occur in two of three documents, so every IDF is ln(1) and
	// the ties keep term order, then document order.
	var paths []string
	for _, r := range and.Results {
		paths = append(paths, r.Path)
		assert.Zero(t, r.Score)
		require.Len(t, r.Occurrences, 1)
	}
	assert.Equal(t, []string{"corpus/b.txt", "corpus/c.txt", "corpus/b.txt", "corpus/c.txt"}, paths)
	assert.Equal(t, "hurt", and.Results[2].QueryTerm)

	var or searchBody
	get(t, srv.URL+"/api/v1/search?q=stones+bones&mode=or", &or)
	assert.Equal(t, 3, or.Total)

	var bones searchBody
	get(t, srv.URL+"/api/v1/search?q=bones&mode=or", &bones)
	require.Len(t, bones.Results, 1)
	assert.Equal(t, "corpus/b.txt", bones.Results[0].Path)
	assert.Equal(t, 0, bones.Results[0].Occurrences[0].Line)
	assert.Equal(t, 31, bones.Results[0].Occurrences[0].Index)
	assert.InDelta(t, math.Log(3.0/2.0)/8.0, bones.Results[0].Score, 1e-12)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/search", "200")))
}

func TestDocumentsOverHTTP(t *testing.T) {
	srv, _ := startServer(t)

	var doc struct {
		ID   int    `json:"id"`
		Path string `json:"path"`
	}
	resp := get(t, srv.URL+"/api/v1/documents/2", &doc)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "corpus/c.txt", doc.Path)

	resp = get(t, srv.URL+"/api/v1/documents/3", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
