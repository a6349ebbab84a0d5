// Package executor answers free-text queries against the inverted index
// using AND or OR candidate selection and TF-IDF ranking.
package executor

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/search100/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/metrics"
)

// Strategy selects how query terms combine into a candidate set.
type Strategy int

const (
	// StrategyAND keeps documents containing every query term.
	StrategyAND Strategy = iota
	// StrategyOR keeps documents containing at least one query term.
	StrategyOR
)

func (s Strategy) String() string {
	switch s {
	case StrategyAND:
		return "and"
	case StrategyOR:
		return "or"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy maps "and" or "or", in any case, to a Strategy. An empty
// string means AND.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "and":
		return StrategyAND, nil
	case "or":
		return StrategyOR, nil
	default:
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown search strategy %q", s)
	}
}

// Result is one scored (query term, document) pair.
type Result struct {
	QueryTerm   tokenizer.Token    `json:"query_term"`
	DocumentID  int                `json:"document_id"`
	Score       float64            `json:"score"`
	Occurrences []index.Occurrence `json:"occurrences"`
}

// Source exposes the index a search runs against.
type Source interface {
	Index() *index.Index
}

type Executor struct {
	source  Source
	limit   int
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Executor)

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithLimit caps the number of results returned after ranking. Zero means
// no cap.
func WithLimit(n int) Option {
	return func(e *Executor) {
		if n >= 0 {
			e.limit = n
		}
	}
}

func New(source Source, opts ...Option) *Executor {
	e := &Executor{
		source: source,
		logger: slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search tokenizes query exactly like indexed text, selects candidate
// documents with strategy and returns every (term, document) pair ranked
// by TF-IDF score, highest first. A query with no indexable words yields
// no results.
func (e *Executor) Search(query string, strategy Strategy) ([]Result, error) {
	start := time.Now()
	results, err := e.search(query, strategy)
	e.observe(strategy, len(results), err, time.Since(start))
	if err != nil {
		return nil, err
	}
	e.logger.Debug("search executed",
		"query", query,
		"strategy", strategy.String(),
		"results", len(results),
		"duration", time.Since(start),
	)
	return results, nil
}

func (e *Executor) search(query string, strategy Strategy) ([]Result, error) {
	if strategy != StrategyAND && strategy != StrategyOR {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown search strategy %d", int(strategy))
	}
	idx := e.source.Index()
	if idx == nil {
		return nil, apperrors.New(apperrors.ErrIndexNotReady, http.StatusServiceUnavailable, "index has not been built")
	}

	terms := tokenizer.Tokenize(query)
	if len(terms) == 0 {
		return []Result{}, nil
	}

	sets := make([]*roaring.Bitmap, len(terms))
	for i, t := range terms {
		sets[i] = idx.Documents(t.Stemmed)
	}

	var candidates []ranker.Candidate
	switch strategy {
	case StrategyAND:
		common := intersect(sets)
		for i, t := range terms {
			candidates = appendCandidates(candidates, idx, i, t.Stemmed, common)
		}
	case StrategyOR:
		for i, t := range terms {
			candidates = appendCandidates(candidates, idx, i, t.Stemmed, sets[i])
		}
	}

	ranked := ranker.Rank(candidates, idx.DocumentCount())
	if e.limit > 0 && len(ranked) > e.limit {
		ranked = ranked[:e.limit]
	}

	results := make([]Result, len(ranked))
	for i, s := range ranked {
		results[i] = Result{
			QueryTerm:   terms[s.Term],
			DocumentID:  s.DocumentID,
			Score:       s.Score,
			Occurrences: idx.Occurrences(s.DocumentID, terms[s.Term].Stemmed),
		}
	}
	return results, nil
}

// intersect folds sets with AND. Once the running set is empty the
// remaining terms cannot add documents back.
func intersect(sets []*roaring.Bitmap) *roaring.Bitmap {
	common := sets[0].Clone()
	for _, s := range sets[1:] {
		if common.IsEmpty() {
			break
		}
		common.And(s)
	}
	return common
}

func appendCandidates(dst []ranker.Candidate, idx *index.Index, term int, stem string, docs *roaring.Bitmap) []ranker.Candidate {
	df := idx.DocumentFrequency(stem)
	it := docs.Iterator()
	for it.HasNext() {
		id := int(it.Next())
		dst = append(dst, ranker.Candidate{
			Term:              term,
			DocumentID:        id,
			TermCount:         len(idx.Occurrences(id, stem)),
			DocumentEntries:   idx.OccurrenceCount(id),
			DocumentFrequency: df,
		})
	}
	return dst
}

func (e *Executor) observe(strategy Strategy, n int, err error, d time.Duration) {
	if e.metrics == nil {
		return
	}
	resultType := "hit"
	switch {
	case err != nil:
		resultType = "error"
	case n == 0:
		resultType = "zero_result"
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(strategy.String(), resultType).Inc()
	e.metrics.SearchLatency.WithLabelValues(strategy.String()).Observe(d.Seconds())
	if err == nil {
		e.metrics.SearchResultsCount.Observe(float64(n))
	}
}
