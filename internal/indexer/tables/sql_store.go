package tables

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	// Registers the pure-Go "sqlite" database/sql driver.
	_ "github.com/glebarez/go-sqlite"

	apperrors "github.com/Adithya-Monish-Kumar-K/search100/pkg/errors"
)

// Dialect selects placeholder syntax for SQLStore queries.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY,
		path TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS term_occurrences (
		document_id INTEGER NOT NULL,
		term TEXT NOT NULL,
		seq INTEGER NOT NULL,
		original TEXT NOT NULL,
		char_index INTEGER NOT NULL,
		line INTEGER NOT NULL,
		PRIMARY KEY (document_id, term, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS term_documents (
		term TEXT NOT NULL,
		document_id INTEGER NOT NULL,
		PRIMARY KEY (term, document_id)
	)`,
}

// rebind rewrites ? placeholders into the dialect's form.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore keeps the tables in a relational database.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps db and creates the schema if it is missing.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("creating table schema: %w", err)
		}
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

// OpenSQLite opens (or creates) the SQLite database at path. Use ":memory:"
// for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)
	store, err := NewSQLStore(ctx, db, DialectSQLite)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Exists(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return false, fmt.Errorf("counting documents: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) Load(ctx context.Context) (*Tables, error) {
	t := &Tables{
		Documents:       make(map[string]int),
		TermOccurrences: make(map[string]map[string][]OccurrenceRecord),
		TermDocuments:   make(map[string][]int),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, path FROM documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	for rows.Next() {
		var id int
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		t.Documents[path] = id
		t.TermOccurrences[strconv.Itoa(id)] = make(map[string][]OccurrenceRecord)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	if len(t.Documents) == 0 {
		return nil, apperrors.ErrTablesMissing
	}

	rows, err = s.db.QueryContext(ctx, `SELECT document_id, term, original, char_index, line
		FROM term_occurrences ORDER BY document_id, term, seq`)
	if err != nil {
		return nil, fmt.Errorf("querying term occurrences: %w", err)
	}
	for rows.Next() {
		var id int
		var term string
		var rec OccurrenceRecord
		if err := rows.Scan(&id, &term, &rec.Original, &rec.Index, &rec.Line); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning term occurrence: %w", err)
		}
		terms, ok := t.TermOccurrences[strconv.Itoa(id)]
		if !ok {
			rows.Close()
			return nil, fmt.Errorf("%w: occurrence for unknown document %d", apperrors.ErrCorruptTables, id)
		}
		terms[term] = append(terms[term], rec)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT term, document_id FROM term_documents ORDER BY term, document_id`)
	if err != nil {
		return nil, fmt.Errorf("querying term documents: %w", err)
	}
	for rows.Next() {
		var term string
		var id int
		if err := rows.Scan(&term, &id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning term document: %w", err)
		}
		t.TermDocuments[term] = append(t.TermDocuments[term], id)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return t, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterating rows: %w", err)
	}
	return rows.Close()
}

// Save replaces every stored row inside one transaction.
func (s *SQLStore) Save(ctx context.Context, t *Tables) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := clearRows(ctx, tx); err != nil {
			return err
		}

		insertDoc, err := tx.PrepareContext(ctx, s.dialect.rebind(`INSERT INTO documents (id, path) VALUES (?, ?)`))
		if err != nil {
			return fmt.Errorf("preparing document insert: %w", err)
		}
		defer insertDoc.Close()
		for path, id := range t.Documents {
			if _, err := insertDoc.ExecContext(ctx, id, path); err != nil {
				return fmt.Errorf("inserting document %q: %w", path, err)
			}
		}

		insertOcc, err := tx.PrepareContext(ctx, s.dialect.rebind(`INSERT INTO term_occurrences
			(document_id, term, seq, original, char_index, line) VALUES (?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return fmt.Errorf("preparing occurrence insert: %w", err)
		}
		defer insertOcc.Close()
		for key, terms := range t.TermOccurrences {
			id, err := strconv.Atoi(key)
			if err != nil {
				return fmt.Errorf("%w: document key %q", apperrors.ErrInvalidInput, key)
			}
			for term, records := range terms {
				for seq, rec := range records {
					if _, err := insertOcc.ExecContext(ctx, id, term, seq, rec.Original, rec.Index, rec.Line); err != nil {
						return fmt.Errorf("inserting occurrence of %q: %w", term, err)
					}
				}
			}
		}

		insertTermDoc, err := tx.PrepareContext(ctx, s.dialect.rebind(`INSERT INTO term_documents (term, document_id) VALUES (?, ?)`))
		if err != nil {
			return fmt.Errorf("preparing term document insert: %w", err)
		}
		defer insertTermDoc.Close()
		for term, ids := range t.TermDocuments {
			for _, id := range ids {
				if _, err := insertTermDoc.ExecContext(ctx, term, id); err != nil {
					return fmt.Errorf("inserting term document %q: %w", term, err)
				}
			}
		}
		return nil
	})
}

// Clear deletes every stored row.
func (s *SQLStore) Clear(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return clearRows(ctx, tx)
	})
}

func clearRows(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"term_documents", "term_occurrences", "documents"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
