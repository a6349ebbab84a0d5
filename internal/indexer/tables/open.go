package tables

import (
	"context"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/search100/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/fsutil"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/postgres"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the Store selected by cfg.Storage. The returned Closer
// releases any database connection the store holds.
func Open(ctx context.Context, cfg *config.Config) (Store, io.Closer, error) {
	switch cfg.Storage.Backend {
	case config.BackendFile:
		fsys, dir, err := fsutil.OSDir(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening data directory: %w", err)
		}
		store, err := NewFileStore(fsys, dir, cfg.Storage.Compression)
		if err != nil {
			return nil, nil, err
		}
		return store, nopCloser{}, nil
	case config.BackendSQLite:
		store, err := OpenSQLite(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case config.BackendPostgres:
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		store, err := NewSQLStore(ctx, client.DB, DialectPostgres)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return store, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
