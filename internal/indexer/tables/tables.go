// Package tables converts an index.Index to and from the three persisted
// tables (documents, term occurrences and term documents) and stores them
// through a pluggable Store.
package tables

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/search100/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/search100/pkg/errors"
)

// OccurrenceRecord is the persisted form of an index.Occurrence. Term and
// document are implied by where the record is stored.
type OccurrenceRecord struct {
	Original string `json:"original"`
	Index    int    `json:"index"`
	Line     int    `json:"line"`
}

// Tables is the persisted form of an index.
type Tables struct {
	// Documents maps a document path to its identifier.
	Documents map[string]int `json:"documents"`
	// TermOccurrences maps a decimal document identifier to the occurrences
	// of each of its terms. Every document has an entry, possibly empty.
	TermOccurrences map[string]map[string][]OccurrenceRecord `json:"term_occurrences"`
	// TermDocuments maps a term to the ascending identifiers of the
	// documents containing it.
	TermDocuments map[string][]int `json:"term_documents"`
}

// Store persists Tables.
type Store interface {
	// Exists reports whether a complete set of tables is present.
	Exists(ctx context.Context) (bool, error)
	// Load reads the tables. It returns ErrTablesMissing when nothing is
	// stored.
	Load(ctx context.Context) (*Tables, error)
	// Save replaces any stored tables with t.
	Save(ctx context.Context, t *Tables) error
	// Clear removes any stored tables. Clearing an empty store is not an
	// error.
	Clear(ctx context.Context) error
}

// FromIndex captures the current contents of x.
func FromIndex(x *index.Index) *Tables {
	t := &Tables{
		Documents:       make(map[string]int),
		TermOccurrences: make(map[string]map[string][]OccurrenceRecord),
		TermDocuments:   make(map[string][]int),
	}
	for id, path := range x.Paths() {
		t.Documents[path] = id
		terms := make(map[string][]OccurrenceRecord)
		for _, term := range x.TermsOf(id) {
			occs := x.Occurrences(id, term)
			records := make([]OccurrenceRecord, len(occs))
			for i, occ := range occs {
				records[i] = OccurrenceRecord{Original: occ.Original, Index: occ.Index, Line: occ.Line}
			}
			terms[term] = records
		}
		t.TermOccurrences[strconv.Itoa(id)] = terms
	}
	for _, term := range x.Terms() {
		docs := x.Documents(term).ToArray()
		ids := make([]int, len(docs))
		for i, d := range docs {
			ids[i] = int(d)
		}
		t.TermDocuments[term] = ids
	}
	return t
}

// Build reconstructs an index from t. Any inconsistency between the three
// tables is reported as ErrCorruptTables.
func (t *Tables) Build() (*index.Index, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: no tables", apperrors.ErrCorruptTables)
	}
	paths := make([]string, len(t.Documents))
	seen := make([]bool, len(t.Documents))
	for path, id := range t.Documents {
		if id < 0 || id >= len(paths) || seen[id] {
			return nil, fmt.Errorf("%w: document ids are not dense (%q has %d)", apperrors.ErrCorruptTables, path, id)
		}
		seen[id] = true
		paths[id] = path
	}

	x := index.New()
	for _, path := range paths {
		if _, err := x.AddDocument(path); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptTables, err)
		}
	}

	if len(t.TermOccurrences) > len(paths) {
		return nil, fmt.Errorf("%w: occurrences for unknown documents", apperrors.ErrCorruptTables)
	}
	for id := range paths {
		terms, ok := t.TermOccurrences[strconv.Itoa(id)]
		if !ok {
			return nil, fmt.Errorf("%w: document %d has no occurrence table", apperrors.ErrCorruptTables, id)
		}
		names := make([]string, 0, len(terms))
		for term := range terms {
			names = append(names, term)
		}
		sort.Strings(names)
		for _, term := range names {
			for _, rec := range terms[term] {
				err := x.Add(index.Occurrence{
					Stemmed:    term,
					Original:   rec.Original,
					Index:      rec.Index,
					Line:       rec.Line,
					DocumentID: id,
				})
				if err != nil {
					return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptTables, err)
				}
			}
		}
	}

	if len(t.TermDocuments) != x.TermCount() {
		return nil, fmt.Errorf("%w: %d term document sets for %d terms",
			apperrors.ErrCorruptTables, len(t.TermDocuments), x.TermCount())
	}
	for term, ids := range t.TermDocuments {
		derived := x.Documents(term).ToArray()
		if len(derived) != len(ids) {
			return nil, fmt.Errorf("%w: document set of %q disagrees with occurrences", apperrors.ErrCorruptTables, term)
		}
		sorted := append([]int(nil), ids...)
		sort.Ints(sorted)
		for i, id := range sorted {
			if id < 0 || uint32(id) != derived[i] {
				return nil, fmt.Errorf("%w: document set of %q disagrees with occurrences", apperrors.ErrCorruptTables, term)
			}
		}
	}
	return x, nil
}
