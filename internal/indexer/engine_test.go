package indexer

import (
	"context"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/hack-pad/hackpadfs"
	"github.com/hack-pad/hackpadfs/mem"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer/tables"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search100/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/resilience"
)

func newCorpus(t *testing.T, files map[string]string) *mem.FS {
	t.Helper()
	fsys, err := mem.NewFS()
	require.NoError(t, err)
	require.NoError(t, hackpadfs.MkdirAll(fsys, "corpus", 0o755))
	for name, body := range files {
		require.NoError(t, hackpadfs.MkdirAll(fsys, path.Dir(name), 0o755))
		require.NoError(t, hackpadfs.WriteFullFile(fsys, name, []byte(body), 0o644))
	}
	return fsys
}

func newEngine(t *testing.T, fsys hackpadfs.FS, opts ...Option) (*Engine, *tables.FileStore) {
	t.Helper()
	store, err := tables.NewFileStore(fsys, "data", config.CompressionNone)
	require.NoError(t, err)
	opts = append([]Option{WithLogger(logger.Discard())}, opts...)
	e, err := NewEngine(fsys, "corpus", store, opts...)
	require.NoError(t, err)
	return e, store
}

var sampleCorpus = map[string]string{
	"corpus/b.txt":          "Stones and sticks may break my bones\nbut words can never hurt me",
	"corpus/a.txt":          "Sticks break.\n\nStones roll",
	"corpus/notes.md":       "ignored stones",
	"corpus/sub/c.txt":      "hurting words",
	"corpus/stop.txt":       "the and of it",
	"corpus/sub/deep/d.txt": "",
}

func TestBuildIndexScansCorpusInPathOrder(t *testing.T) {
	e, _ := newEngine(t, newCorpus(t, sampleCorpus))

	n, err := e.BuildIndex(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, e.DocumentCount())

	want := []string{"corpus/a.txt", "corpus/b.txt", "corpus/stop.txt", "corpus/sub/c.txt", "corpus/sub/deep/d.txt"}
	assert.Equal(t, want, e.Index().Paths())

	p, err := e.ResolvePath(3)
	require.NoError(t, err)
	assert.Equal(t, "corpus/sub/c.txt", p)
	_, err = e.ResolvePath(5)
	assert.ErrorIs(t, err, apperrors.ErrUnknownDocument)

	status := e.Status()
	assert.Equal(t, SourceScan, status.Source)
	assert.Equal(t, 5, status.Documents)
}

func TestBuildIndexRecordsLinesAndOffsets(t *testing.T) {
	e, _ := newEngine(t, newCorpus(t, sampleCorpus))
	_, err := e.BuildIndex(context.Background(), false)
	require.NoError(t, err)

	idx := e.Index()
	occs := idx.Occurrences(0, "stone")
	require.Len(t, occs, 1)
	assert.Equal(t, 2, occs[0].Line)
	assert.Equal(t, 0, occs[0].Index)
	assert.Equal(t, "Stones", occs[0].Original)

	words := idx.Occurrences(1, "word")
	require.Len(t, words, 1)
	assert.Equal(t, 1, words[0].Line)
	assert.Equal(t, 4, words[0].Index)

	assert.Equal(t, 0, idx.OccurrenceCount(2), "stop words only")
	assert.Equal(t, 0, idx.OccurrenceCount(4), "empty file")
	assert.Equal(t, []uint32{0, 1}, idx.Documents("break").ToArray())
}

func TestBuildIndexUsesCache(t *testing.T) {
	fsys := newCorpus(t, sampleCorpus)
	e, store := newEngine(t, fsys)
	ctx := context.Background()

	_, err := e.BuildIndex(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, SourceScan, e.Status().Source)
	first, err := store.Load(ctx)
	require.NoError(t, err)

	// New documents are not picked up while the cache is trusted.
	require.NoError(t, hackpadfs.WriteFullFile(fsys, "corpus/z.txt", []byte("zebra"), 0o644))

	n, err := e.BuildIndex(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, SourceCache, e.Status().Source)

	second, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	n, err = e.BuildIndex(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestBuildIndexRebuildsCorruptCache(t *testing.T) {
	fsys := newCorpus(t, sampleCorpus)
	e, _ := newEngine(t, fsys)
	ctx := context.Background()

	_, err := e.BuildIndex(ctx, false)
	require.NoError(t, err)
	require.NoError(t, hackpadfs.WriteFullFile(fsys, "data/"+tables.TermDocumentsFile, []byte(`{"ghost":[0]}`), 0o644))

	n, err := e.BuildIndex(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, SourceScan, e.Status().Source)
}

func TestBuildIndexEmptyCorpus(t *testing.T) {
	fsys := newCorpus(t, map[string]string{"corpus/readme.md": "nothing to index"})
	e, store := newEngine(t, fsys)
	ctx := context.Background()

	n, err := e.BuildIndex(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, SourceEmpty, e.Status().Source)

	ok, err := store.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty corpus writes no tables")
}

func TestNewEngineRejectsNonDirectory(t *testing.T) {
	fsys := newCorpus(t, map[string]string{"corpus/a.txt": "text"})
	store, err := tables.NewFileStore(fsys, "data", config.CompressionNone)
	require.NoError(t, err)

	_, err = NewEngine(fsys, "corpus/a.txt", store)
	assert.ErrorIs(t, err, apperrors.ErrNotDirectory)
	_, err = NewEngine(fsys, "missing", store)
	assert.ErrorIs(t, err, apperrors.ErrNotDirectory)
	_, err = NewEngine(fsys, "corpus", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestWithExtension(t *testing.T) {
	e, _ := newEngine(t, newCorpus(t, sampleCorpus), WithExtension(".md"))
	n, err := e.BuildIndex(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"corpus/notes.md"}, e.Index().Paths())
}

var errPermission = errors.New("permission denied")

// failingFS refuses to open one path.
type failingFS struct {
	hackpadfs.FS
	bad string
}

func (f failingFS) Open(name string) (hackpadfs.File, error) {
	if name == f.bad {
		return nil, errPermission
	}
	return f.FS.Open(name)
}

func TestBuildIndexSkipsUnreadableFiles(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	corpus := newCorpus(t, sampleCorpus)
	store, err := tables.NewFileStore(corpus, "data", config.CompressionNone)
	require.NoError(t, err)
	fsys := failingFS{FS: corpus, bad: "corpus/b.txt"}
	e, err := NewEngine(fsys, "corpus", store, WithLogger(logger.Discard()), WithMetrics(m))
	require.NoError(t, err)

	n, err := e.BuildIndex(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NotContains(t, e.Index().Paths(), "corpus/b.txt")
	assert.Equal(t, []string{"corpus/b.txt"}, e.Status().SkippedFiles)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FilesSkippedTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.DocsIndexedTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.IndexedDocuments))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("scan", "ok")))
}

type recordingPublisher struct {
	events []kafka.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e kafka.Event) error {
	p.events = append(p.events, e)
	return p.err
}

func TestBuildIndexNotifies(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	notifier := NewEventNotifier(pub, "corpus")
	notifier.Retry = resilience.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}
	e, _ := newEngine(t, newCorpus(t, sampleCorpus), WithNotifier(notifier))

	// A failing notifier does not fail the build.
	_, err := e.BuildIndex(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, pub.events, 2, "publish is retried")
	assert.Equal(t, "corpus", pub.events[0].Key)
	event, ok := pub.events[0].Value.(IndexEvent)
	require.True(t, ok)
	assert.Equal(t, SourceScan, event.Source)
	assert.Equal(t, 5, event.Documents)
}

func TestBuildIndexRunsToCompletionAfterCancellation(t *testing.T) {
	e, store := newEngine(t, newCorpus(t, sampleCorpus))
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	n, err := e.BuildIndex(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, SourceScan, e.Status().Source)

	ok, err := store.Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, ok, "tables are persisted even though the caller gave up")
}

// slowFS delays every open so that a build outlives a short deadline.
type slowFS struct {
	hackpadfs.FS
	delay time.Duration
}

func (f slowFS) Open(name string) (hackpadfs.File, error) {
	time.Sleep(f.delay)
	return f.FS.Open(name)
}

func TestBuildIndexOutlivesDeadline(t *testing.T) {
	corpus := newCorpus(t, sampleCorpus)
	store, err := tables.NewFileStore(corpus, "data", config.CompressionNone)
	require.NoError(t, err)
	e, err := NewEngine(slowFS{FS: corpus, delay: 10 * time.Millisecond}, "corpus", store, WithLogger(logger.Discard()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()
	n, err := e.BuildIndex(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, e.DocumentCount())
}

func TestBuildIndexCacheMatchesScan(t *testing.T) {
	fsys := newCorpus(t, sampleCorpus)
	e, _ := newEngine(t, fsys)
	ctx := context.Background()

	_, err := e.BuildIndex(ctx, false)
	require.NoError(t, err)
	scanned := tables.FromIndex(e.Index())

	_, err = e.BuildIndex(ctx, true)
	require.NoError(t, err)
	require.Equal(t, SourceCache, e.Status().Source)
	assert.Equal(t, scanned, tables.FromIndex(e.Index()))
	assert.Equal(t, []uint32{0, 1}, e.Index().Documents("stone").ToArray())
}

func TestForcedRebuildOfEmptyCorpusClearsTables(t *testing.T) {
	fsys := newCorpus(t, sampleCorpus)
	e, store := newEngine(t, fsys)
	ctx := context.Background()

	_, err := e.BuildIndex(ctx, false)
	require.NoError(t, err)

	for name := range sampleCorpus {
		require.NoError(t, hackpadfs.Remove(fsys, name))
	}
	n, err := e.BuildIndex(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, SourceEmpty, e.Status().Source)

	ok, err := store.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// A warm start must not bring the removed documents back.
	n, err = e.BuildIndex(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, SourceEmpty, e.Status().Source)
}
