// Package index holds the in-memory inverted index: the document registry,
// the per-document term occurrences and the per-term document sets.
//
// All three views are kept consistent by routing every insertion through
// Add. The index is safe for concurrent readers; writers are expected to
// build a fresh Index and swap it in rather than mutate a live one.
package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	apperrors "github.com/Adithya-Monish-Kumar-K/search100/pkg/errors"
)

// Occurrence is one appearance of a term in a document.
type Occurrence struct {
	Stemmed    string `json:"stemmed"`
	Original   string `json:"original"`
	Index      int    `json:"index"`
	Line       int    `json:"line"`
	DocumentID int    `json:"document_id"`
}

type Index struct {
	mu sync.RWMutex

	paths []string
	ids   map[string]int

	// occurrences[id][term] lists the occurrences of term in document id in
	// insertion order.
	occurrences []map[string][]Occurrence
	// entries[id] is the number of occurrences recorded for document id.
	entries []int

	termDocs map[string]*roaring.Bitmap
}

func New() *Index {
	return &Index{
		ids:      make(map[string]int),
		termDocs: make(map[string]*roaring.Bitmap),
	}
}

// AddDocument registers path and returns its identifier. Identifiers are
// dense and assigned in registration order starting at zero.
func (x *Index) AddDocument(path string) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, exists := x.ids[path]; exists {
		return 0, fmt.Errorf("%w: document %q already registered", apperrors.ErrInvalidInput, path)
	}
	id := len(x.paths)
	x.paths = append(x.paths, path)
	x.ids[path] = id
	x.occurrences = append(x.occurrences, make(map[string][]Occurrence))
	x.entries = append(x.entries, 0)
	return id, nil
}

// Add records occ against its document and term.
func (x *Index) Add(occ Occurrence) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if occ.DocumentID < 0 || occ.DocumentID >= len(x.paths) {
		return fmt.Errorf("%w: %d", apperrors.ErrUnknownDocument, occ.DocumentID)
	}
	if occ.Stemmed == "" {
		return fmt.Errorf("%w: occurrence without a term", apperrors.ErrInvalidInput)
	}
	terms := x.occurrences[occ.DocumentID]
	terms[occ.Stemmed] = append(terms[occ.Stemmed], occ)
	x.entries[occ.DocumentID]++

	docs, ok := x.termDocs[occ.Stemmed]
	if !ok {
		docs = roaring.New()
		x.termDocs[occ.Stemmed] = docs
	}
	docs.Add(uint32(occ.DocumentID))
	return nil
}

func (x *Index) DocumentCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.paths)
}

func (x *Index) TermCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.termDocs)
}

// Path returns the path registered under id.
func (x *Index) Path(id int) (string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if id < 0 || id >= len(x.paths) {
		return "", fmt.Errorf("%w: %d", apperrors.ErrUnknownDocument, id)
	}
	return x.paths[id], nil
}

// Paths returns the registered paths indexed by document id.
func (x *Index) Paths() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, len(x.paths))
	copy(out, x.paths)
	return out
}

// Occurrences returns the occurrences of term in document id, or nil.
func (x *Index) Occurrences(id int, term string) []Occurrence {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if id < 0 || id >= len(x.occurrences) {
		return nil
	}
	occs := x.occurrences[id][term]
	if len(occs) == 0 {
		return nil
	}
	out := make([]Occurrence, len(occs))
	copy(out, occs)
	return out
}

// TermsOf returns the distinct terms of document id in sorted order.
func (x *Index) TermsOf(id int) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if id < 0 || id >= len(x.occurrences) {
		return nil
	}
	terms := make([]string, 0, len(x.occurrences[id]))
	for term := range x.occurrences[id] {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// OccurrenceCount returns the number of occurrence entries of document id
// across all of its terms.
func (x *Index) OccurrenceCount(id int) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if id < 0 || id >= len(x.entries) {
		return 0
	}
	return x.entries[id]
}

// Documents returns a copy of the set of documents containing term. The
// result is empty, never nil, for an unknown term.
func (x *Index) Documents(term string) *roaring.Bitmap {
	x.mu.RLock()
	defer x.mu.RUnlock()
	docs, ok := x.termDocs[term]
	if !ok {
		return roaring.New()
	}
	return docs.Clone()
}

// DocumentFrequency returns how many documents contain term.
func (x *Index) DocumentFrequency(term string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	docs, ok := x.termDocs[term]
	if !ok {
		return 0
	}
	return int(docs.GetCardinality())
}

// Terms returns every indexed term in sorted order.
func (x *Index) Terms() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	terms := make([]string, 0, len(x.termDocs))
	for term := range x.termDocs {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}
