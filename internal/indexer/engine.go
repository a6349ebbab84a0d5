// Package indexer builds the inverted index of a corpus directory, either
// from persisted tables or by scanning and tokenising every document.
package indexer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"time"

	"github.com/hack-pad/hackpadfs"

	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer/tables"
	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/search100/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/metrics"
)

// DefaultExtension is the file extension of indexable documents.
const DefaultExtension = ".txt"

// maxLineSize bounds a single line of a document.
const maxLineSize = 1024 * 1024

// Source says where the live index came from.
type Source string

const (
	SourceNone  Source = "none"
	SourceCache Source = "cache"
	SourceScan  Source = "scan"
	SourceEmpty Source = "empty"
)

// Status describes the most recent BuildIndex call.
type Status struct {
	Source       Source        `json:"source"`
	Documents    int           `json:"documents"`
	Terms        int           `json:"terms"`
	SkippedFiles []string      `json:"skipped_files,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
	BuiltAt      time.Time     `json:"built_at"`
}

// Notifier is told about every completed build.
type Notifier interface {
	NotifyIndexed(ctx context.Context, status Status) error
}

type Engine struct {
	fs        hackpadfs.FS
	corpusDir string
	extension string
	store     tables.Store
	idx       *index.Index
	status    Status
	logger    *slog.Logger
	metrics   *metrics.Metrics
	notifier  Notifier
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l.With("component", "indexer") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithExtension changes which files are indexed. ext includes the dot.
func WithExtension(ext string) Option {
	return func(e *Engine) { e.extension = ext }
}

// NewEngine returns an Engine over corpusDir of corpus. It fails with
// ErrNotDirectory when corpusDir does not name a directory. The index is
// empty until BuildIndex is called.
func NewEngine(corpus hackpadfs.FS, corpusDir string, store tables.Store, opts ...Option) (*Engine, error) {
	if corpusDir == "" {
		corpusDir = "."
	}
	corpusDir = path.Clean(corpusDir)
	info, err := hackpadfs.Stat(corpus, corpusDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrNotDirectory, corpusDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrNotDirectory, corpusDir)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: nil table store", apperrors.ErrInvalidInput)
	}

	e := &Engine{
		fs:        corpus,
		corpusDir: corpusDir,
		extension: DefaultExtension,
		store:     store,
		idx:       index.New(),
		status:    Status{Source: SourceNone},
		logger:    slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// BuildIndex populates the index and returns the number of documents in it.
//
// With useCache set, persisted tables are loaded when present and
// consistent. Otherwise, or when loading fails, the corpus is scanned and the
// resulting tables are persisted. An empty corpus yields an empty index and
// clears any stored tables. The previous index stays live until the new one
// is complete.
//
// A build runs to completion once started: cancellation of ctx is ignored,
// its values are kept.
func (e *Engine) BuildIndex(ctx context.Context, useCache bool) (int, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	if useCache {
		idx, err := e.loadTables(ctx)
		switch {
		case err == nil:
			e.install(ctx, idx, SourceCache, nil, start)
			return idx.DocumentCount(), nil
		case errors.Is(err, apperrors.ErrTablesMissing):
			e.logger.Info("no local index tables found, scanning corpus")
		default:
			e.logger.Warn("local index tables unusable, rebuilding", "error", err)
		}
	}

	idx, skipped, err := e.scan()
	if err != nil {
		e.countBuild(SourceScan, "error")
		return 0, err
	}
	if idx.DocumentCount() == 0 {
		e.logger.Warn("no documents found in corpus, index is empty",
			"dir", e.corpusDir,
			"extension", e.extension,
		)
		if err := e.store.Clear(ctx); err != nil {
			e.countBuild(SourceEmpty, "error")
			return 0, fmt.Errorf("clearing stale index tables: %w", err)
		}
		e.install(ctx, idx, SourceEmpty, skipped, start)
		return 0, nil
	}

	if err := e.store.Save(ctx, tables.FromIndex(idx)); err != nil {
		e.countBuild(SourceScan, "error")
		return 0, fmt.Errorf("persisting index tables: %w", err)
	}
	e.install(ctx, idx, SourceScan, skipped, start)
	return idx.DocumentCount(), nil
}

func (e *Engine) loadTables(ctx context.Context) (*index.Index, error) {
	ok, err := e.store.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrTablesMissing
	}
	t, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return t.Build()
}

func (e *Engine) install(ctx context.Context, idx *index.Index, source Source, skipped []string, start time.Time) {
	e.idx = idx
	e.status = Status{
		Source:       source,
		Documents:    idx.DocumentCount(),
		Terms:        idx.TermCount(),
		SkippedFiles: skipped,
		Duration:     time.Since(start),
		BuiltAt:      time.Now().UTC(),
	}
	e.logger.Info("index ready",
		"source", source,
		"documents", e.status.Documents,
		"terms", e.status.Terms,
		"skipped", len(skipped),
		"duration", e.status.Duration,
	)
	if e.metrics != nil {
		e.countBuild(source, "ok")
		e.metrics.IndexBuildDuration.WithLabelValues(string(source)).Observe(e.status.Duration.Seconds())
		e.metrics.IndexedDocuments.Set(float64(e.status.Documents))
		e.metrics.IndexedTerms.Set(float64(e.status.Terms))
	}
	if e.notifier != nil {
		if err := e.notifier.NotifyIndexed(ctx, e.status); err != nil {
			e.logger.Error("index notification failed", "error", err)
		}
	}
}

func (e *Engine) countBuild(source Source, status string) {
	if e.metrics != nil {
		e.metrics.IndexBuildsTotal.WithLabelValues(string(source), status).Inc()
	}
}

// scan tokenises every matching file into a fresh index. Document ids
// follow the lexicographic order of the paths.
func (e *Engine) scan() (*index.Index, []string, error) {
	paths, skipped, err := e.walk(e.corpusDir)
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(paths)

	idx := index.New()
	for _, p := range paths {
		lines, err := e.readDocument(p)
		if err != nil {
			e.logger.Warn("skipping unreadable document", "path", p, "error", err)
			skipped = append(skipped, p)
			if e.metrics != nil {
				e.metrics.FilesSkippedTotal.Inc()
			}
			continue
		}
		id, err := idx.AddDocument(p)
		if err != nil {
			return nil, nil, err
		}
		for lineNo, tokens := range lines {
			for _, tok := range tokens {
				if err := idx.Add(index.Occurrence{
					Stemmed:    tok.Stemmed,
					Original:   tok.Original,
					Index:      tok.Index,
					Line:       lineNo,
					DocumentID: id,
				}); err != nil {
					return nil, nil, err
				}
			}
		}
		if e.metrics != nil {
			e.metrics.DocsIndexedTotal.Inc()
		}
		e.logger.Debug("document indexed", "path", p, "document_id", id, "lines", len(lines))
	}
	return idx, skipped, nil
}

// walk collects the paths of matching files below dir. Unreadable
// subdirectories are skipped and reported; an unreadable root is an error.
func (e *Engine) walk(dir string) ([]string, []string, error) {
	entries, err := hackpadfs.ReadDir(e.fs, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading corpus directory %s: %w", dir, err)
	}
	var paths, skipped []string
	for _, entry := range entries {
		p := path.Join(dir, entry.Name())
		if entry.IsDir() {
			sub, subSkipped, err := e.walk(p)
			if err != nil {
				e.logger.Warn("skipping unreadable directory", "path", p, "error", err)
				skipped = append(skipped, p)
				continue
			}
			paths = append(paths, sub...)
			skipped = append(skipped, subSkipped...)
			continue
		}
		if path.Ext(entry.Name()) == e.extension {
			paths = append(paths, p)
		}
	}
	return paths, skipped, nil
}

// readDocument tokenises every line of the file at p. Nothing is returned
// unless the whole file was read.
func (e *Engine) readDocument(p string) ([][]tokenizer.Token, error) {
	data, err := hackpadfs.ReadFile(e.fs, p)
	if err != nil {
		return nil, err
	}
	var lines [][]tokenizer.Token
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		lines = append(lines, tokenizer.Tokenize(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// Index returns the live index.
func (e *Engine) Index() *index.Index {
	return e.idx
}

// DocumentCount returns the number of indexed documents.
func (e *Engine) DocumentCount() int {
	return e.idx.DocumentCount()
}

// ResolvePath returns the path of document id, or ErrUnknownDocument.
func (e *Engine) ResolvePath(id int) (string, error) {
	return e.idx.Path(id)
}

// Status describes the last build.
func (e *Engine) Status() Status {
	s := e.status
	s.SkippedFiles = append([]string(nil), e.status.SkippedFiles...)
	return s
}
