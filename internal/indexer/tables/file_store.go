package tables

import (
	"context"
	"errors"
	"fmt"
	"path"

	gojson "github.com/goccy/go-json"
	"github.com/hack-pad/hackpadfs"

	apperrors "github.com/Adithya-Monish-Kumar-K/search100/pkg/errors"
)

// Table file names, before the compression extension.
const (
	DocumentsFile       = "documents.json"
	TermOccurrencesFile = "term_occurrences.json"
	TermDocumentsFile   = "term_documents.json"
)

// FileStore keeps each table in its own JSON file inside a directory of a
// hackpadfs file system.
type FileStore struct {
	fs    hackpadfs.FS
	dir   string
	codec codec
}

// NewFileStore creates a FileStore writing into dir of fsys, compressing the
// files with the named codec ("none", "zstd" or "lz4").
func NewFileStore(fsys hackpadfs.FS, dir string, compression string) (*FileStore, error) {
	c, err := newCodec(compression)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		dir = "."
	}
	return &FileStore{fs: fsys, dir: path.Clean(dir), codec: c}, nil
}

func (s *FileStore) path(name string) string {
	return path.Join(s.dir, name+s.codec.extension())
}

func (s *FileStore) names() []string {
	return []string{DocumentsFile, TermOccurrencesFile, TermDocumentsFile}
}

func (s *FileStore) Exists(ctx context.Context) (bool, error) {
	for _, name := range s.names() {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		_, err := hackpadfs.Stat(s.fs, s.path(name))
		if errors.Is(err, hackpadfs.ErrNotExist) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("checking table file %s: %w", name, err)
		}
	}
	return true, nil
}

func (s *FileStore) Load(ctx context.Context) (*Tables, error) {
	t := &Tables{}
	targets := []any{&t.Documents, &t.TermOccurrences, &t.TermDocuments}
	for i, name := range s.names() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := hackpadfs.ReadFile(s.fs, s.path(name))
		if errors.Is(err, hackpadfs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrTablesMissing, name)
		}
		if err != nil {
			return nil, fmt.Errorf("reading table file %s: %w", name, err)
		}
		data, err := s.codec.decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrCorruptTables, name, err)
		}
		if err := gojson.Unmarshal(data, targets[i]); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", apperrors.ErrCorruptTables, name, err)
		}
	}
	if t.Documents == nil || t.TermOccurrences == nil || t.TermDocuments == nil {
		return nil, fmt.Errorf("%w: empty table file", apperrors.ErrCorruptTables)
	}
	return t, nil
}

// Save writes every table to a .tmp file first and renames them into place
// once all three are written, so a failed save never leaves a mix of old and
// new files behind.
func (s *FileStore) Save(ctx context.Context, t *Tables) error {
	if s.dir != "." {
		if err := hackpadfs.MkdirAll(s.fs, s.dir, 0o755); err != nil {
			return fmt.Errorf("creating table directory: %w", err)
		}
	}
	values := []any{t.Documents, t.TermOccurrences, t.TermDocuments}
	written := make([]string, 0, len(values))
	for i, name := range s.names() {
		if err := ctx.Err(); err != nil {
			s.cleanup(written)
			return err
		}
		data, err := gojson.Marshal(values[i])
		if err != nil {
			s.cleanup(written)
			return fmt.Errorf("marshaling %s: %w", name, err)
		}
		data, err = s.codec.encode(data)
		if err != nil {
			s.cleanup(written)
			return err
		}
		tmp := s.path(name) + ".tmp"
		if err := hackpadfs.WriteFullFile(s.fs, tmp, data, 0o644); err != nil {
			s.cleanup(written)
			return fmt.Errorf("writing temp table file %s: %w", name, err)
		}
		written = append(written, tmp)
	}

	for _, name := range s.names() {
		final := s.path(name)
		tmp := final + ".tmp"
		if err := s.replace(tmp, final); err != nil {
			return fmt.Errorf("renaming table file %s: %w", name, err)
		}
	}
	return nil
}

// replace moves tmp onto final. File systems without rename support get a
// copy followed by removal of tmp.
func (s *FileStore) replace(tmp, final string) error {
	err := hackpadfs.Rename(s.fs, tmp, final)
	if err == nil || !errors.Is(err, hackpadfs.ErrNotImplemented) {
		return err
	}
	data, err := hackpadfs.ReadFile(s.fs, tmp)
	if err != nil {
		return err
	}
	if err := hackpadfs.WriteFullFile(s.fs, final, data, 0o644); err != nil {
		return err
	}
	return hackpadfs.Remove(s.fs, tmp)
}

// Clear removes the table files, leftover .tmp files included.
func (s *FileStore) Clear(ctx context.Context) error {
	for _, name := range s.names() {
		if err := ctx.Err(); err != nil {
			return err
		}
		final := s.path(name)
		for _, p := range []string{final, final + ".tmp"} {
			err := hackpadfs.Remove(s.fs, p)
			if err != nil && !errors.Is(err, hackpadfs.ErrNotExist) {
				return fmt.Errorf("removing table file %s: %w", name, err)
			}
		}
	}
	return nil
}

func (s *FileStore) cleanup(paths []string) {
	for _, p := range paths {
		_ = hackpadfs.Remove(s.fs, p)
	}
}
