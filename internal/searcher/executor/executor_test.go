package executor

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/search100/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/metrics"
)

type staticSource struct{ idx *index.Index }

func (s staticSource) Index() *index.Index { return s.idx }

// buildIndex indexes one single-line document per entry.
func buildIndex(t *testing.T, docs ...string) *index.Index {
	t.Helper()
	idx := index.New()
	for i, body := range docs {
		id, err := idx.AddDocument(string(rune('a'+i)) + ".txt")
		require.NoError(t, err)
		for _, tok := range tokenizer.Tokenize(body) {
			require.NoError(t, idx.Add(index.Occurrence{
				Stemmed:    tok.Stemmed,
				Original:   tok.Original,
				Index:      tok.Index,
				Line:       1,
				DocumentID: id,
			}))
		}
	}
	return idx
}

func newExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	idx := buildIndex(t,
		"cat dog",
		"cat cat bird",
		"dog bird fish",
		"fish",
	)
	opts = append([]Option{WithLogger(logger.Discard())}, opts...)
	return New(staticSource{idx}, opts...)
}

type hit struct {
	term string
	doc  int
}

func hits(results []Result) []hit {
	out := make([]hit, len(results))
	for i, r := range results {
		out[i] = hit{r.QueryTerm.Original, r.DocumentID}
	}
	return out
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyAND, false},
		{"and", StrategyAND, false},
		{"AND", StrategyAND, false},
		{"Or", StrategyOR, false},
		{" or ", StrategyOR, false},
		{"not", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "and", StrategyAND.String())
	assert.Equal(t, "or", StrategyOR.String())
}

func TestSearchAND(t *testing.T) {
	e := newExecutor(t)
	results, err := e.Search("cat dog", StrategyAND)
	require.NoError(t, err)

	assert.Equal(t, []hit{{"cat", 0}, {"dog", 0}}, hits(results))
	want := math.Log(4.0/3.0) * 0.5
	for _, r := range results {
		assert.InDelta(t, want, r.Score, 1e-12)
		require.Len(t, r.Occurrences, 1)
		assert.Equal(t, r.QueryTerm.Stemmed, r.Occurrences[0].Stemmed)
	}
}

func TestSearchOR(t *testing.T) {
	e := newExecutor(t)
	results, err := e.Search("cat dog", StrategyOR)
	require.NoError(t, err)

	assert.Equal(t, []hit{{"cat", 1}, {"cat", 0}, {"dog", 0}, {"dog", 2}}, hits(results))
	idf := math.Log(4.0 / 3.0)
	assert.InDelta(t, idf*2/3, results[0].Score, 1e-12)
	assert.InDelta(t, idf/3, results[3].Score, 1e-12)
	assert.Len(t, results[0].Occurrences, 2)
}

func TestSearchORPairsTermsWithTheirOwnDocuments(t *testing.T) {
	e := newExecutor(t)
	results, err := e.Search("cat fish", StrategyOR)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEmpty(t, r.Occurrences, "term %s in doc %d", r.QueryTerm.Stemmed, r.DocumentID)
	}
	assert.Len(t, results, 4)
	assert.Equal(t, hit{"fish", 3}, hits(results)[0])
}

func TestSearchUnknownTerm(t *testing.T) {
	e := newExecutor(t)

	results, err := e.Search("cat zebra", StrategyAND)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = e.Search("cat zebra", StrategyOR)
	require.NoError(t, err)
	assert.Equal(t, []hit{{"cat", 1}, {"cat", 0}}, hits(results))
}

func TestSearchDuplicateTermsScoredEach(t *testing.T) {
	e := newExecutor(t)
	results, err := e.Search("cat cats", StrategyAND)
	require.NoError(t, err)
	assert.Equal(t, []hit{{"cat", 1}, {"cats", 1}, {"cat", 0}, {"cats", 0}}, hits(results))
	assert.Equal(t, "cat", results[1].QueryTerm.Stemmed)
	assert.Equal(t, 4, results[1].QueryTerm.Index)
}

func TestSearchWithoutIndexableWords(t *testing.T) {
	e := newExecutor(t)
	for _, q := range []string{"", "   ", "the and of", "a an", "!!!"} {
		results, err := e.Search(q, StrategyAND)
		require.NoError(t, err, q)
		assert.NotNil(t, results)
		assert.Empty(t, results, q)
	}
}

func TestSearchStopWordOnlyCorpus(t *testing.T) {
	idx := buildIndex(t, "The and of it was to be")
	require.Equal(t, 1, idx.DocumentCount())
	require.Zero(t, idx.OccurrenceCount(0))

	e := New(staticSource{idx}, WithLogger(logger.Discard()))
	for _, strategy := range []Strategy{StrategyAND, StrategyOR} {
		for _, q := range []string{"the", "was it", "stones"} {
			results, err := e.Search(q, strategy)
			require.NoError(t, err, q)
			assert.Empty(t, results, "%s %q", strategy, q)
		}
	}
}

func TestSearchReturnsCopies(t *testing.T) {
	e := newExecutor(t)
	results, err := e.Search("bird", StrategyOR)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	results[0].Occurrences[0].Original = "mutated"

	again, err := e.Search("bird", StrategyOR)
	require.NoError(t, err)
	assert.Equal(t, "bird", again[0].Occurrences[0].Original)
}

func TestSearchWithLimit(t *testing.T) {
	e := newExecutor(t, WithLimit(1))
	results, err := e.Search("cat dog", StrategyOR)
	require.NoError(t, err)
	assert.Equal(t, []hit{{"cat", 1}}, hits(results))
}

func TestSearchErrors(t *testing.T) {
	e := New(staticSource{}, WithLogger(logger.Discard()))
	_, err := e.Search("cat", StrategyAND)
	assert.ErrorIs(t, err, apperrors.ErrIndexNotReady)

	e = newExecutor(t)
	_, err = e.Search("cat", Strategy(7))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSearchRecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	e := newExecutor(t, WithMetrics(m))

	_, err := e.Search("cat", StrategyOR)
	require.NoError(t, err)
	_, err = e.Search("zebra", StrategyAND)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("or", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues("and", "zero_result")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.SearchLatency))
}

func BenchmarkSearchOR(b *testing.B) {
	idx := index.New()
	for i := 0; i < 200; i++ {
		id, _ := idx.AddDocument(string(rune(i)) + ".txt")
		for _, tok := range tokenizer.Tokenize("stones and sticks may break my bones but words can never hurt me") {
			_ = idx.Add(index.Occurrence{Stemmed: tok.Stemmed, Original: tok.Original, Index: tok.Index, Line: 1, DocumentID: id})
		}
	}
	e := New(staticSource{idx}, WithLogger(logger.Discard()))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Search("stone words hurting", StrategyOR)
	}
}
