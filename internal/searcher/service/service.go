// Package service ties the index engine, the query executor and the
// optional result cache together for the search server. Searches share a
// read lock; builds and reloads take the write lock, so a search never sees
// a half-installed index.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/searcher/executor"
	apperrors "github.com/Adithya-Monish-Kumar-K/search100/pkg/errors"
)

// Hit is a ranked result together with its document path.
type Hit struct {
	executor.Result
	Path string `json:"path"`
}

type Service struct {
	mu       sync.RWMutex
	engine   *indexer.Engine
	executor *executor.Executor
	cache    *cache.QueryCache
	logger   *slog.Logger
}

// New wraps engine. queryCache may be nil.
func New(engine *indexer.Engine, exec *executor.Executor, queryCache *cache.QueryCache) *Service {
	return &Service{
		engine:   engine,
		executor: exec,
		cache:    queryCache,
		logger:   slog.Default().With("component", "search-service"),
	}
}

// Search runs query and returns at most limit hits (0 means all). The
// boolean reports a cache hit.
func (s *Service) Search(ctx context.Context, query string, strategy executor.Strategy, limit int) ([]Hit, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.engine.Status().Source == indexer.SourceNone {
		return nil, false, apperrors.New(apperrors.ErrIndexNotReady, http.StatusServiceUnavailable, "index has not been built")
	}

	compute := func() ([]executor.Result, error) {
		results, err := s.executor.Search(query, strategy)
		if err != nil {
			return nil, err
		}
		if limit > 0 && len(results) > limit {
			results = results[:limit]
		}
		return results, nil
	}

	var (
		results []executor.Result
		cached  bool
		err     error
	)
	if s.cache != nil {
		results, cached, err = s.cache.GetOrCompute(ctx, query, strategy, limit, compute)
	} else {
		results, err = compute()
	}
	if err != nil {
		return nil, false, err
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		p, err := s.engine.ResolvePath(r.DocumentID)
		if err != nil {
			return nil, false, fmt.Errorf("resolving result document: %w", err)
		}
		hits[i] = Hit{Result: r, Path: p}
	}
	return hits, cached, nil
}

// ResolvePath returns the path of document id.
func (s *Service) ResolvePath(id int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.ResolvePath(id)
}

// Rebuild builds a new index, from the persisted tables unless force is
// set, and drops cached results. It is not bound to the lifetime of ctx, so a
// client that disconnects or times out does not abort the build.
func (s *Service) Rebuild(ctx context.Context, force bool) (indexer.Status, error) {
	ctx = context.WithoutCancel(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.engine.BuildIndex(ctx, !force); err != nil {
		return s.engine.Status(), fmt.Errorf("building index: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("stale cached results may be served", "error", err)
		}
	}
	status := s.engine.Status()
	s.logger.Info("index installed",
		"source", status.Source,
		"documents", status.Documents,
		"terms", status.Terms,
	)
	return status, nil
}

// Reload picks up tables persisted by another process.
func (s *Service) Reload(ctx context.Context) (indexer.Status, error) {
	return s.Rebuild(ctx, false)
}

func (s *Service) Status() indexer.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Status()
}
