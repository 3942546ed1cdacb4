package main

import (
	"context"
	"fmt"

	"blamer/client"
	"blamer/internal/blame"
	"blamer/internal/blame/storage"
	"blamer/internal/logging"
	kv "blamer/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// backend is where the CLI reads and writes blame records: the local
// database or a running server.
type backend interface {
	Files(ctx context.Context) ([]string, error)
	Get(ctx context.Context, fileName string) (*blame.FileBlame, error)
	Merge(ctx context.Context, fb *blame.FileBlame) (*blame.FileBlame, error)
	Put(ctx context.Context, fb *blame.FileBlame) error
	Load(ctx context.Context) (*blame.Blames, error)
	Delete(ctx context.Context, fileName string) error
	Close() error
}

type localBackend struct {
	db    *badger.DB
	store *storage.Store
}

func openLocal(dir string, logger *zap.Logger) (*localBackend, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(logging.NewBadgerLogger(logger)))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	compressor, err := kv.NewCompressor(kv.DefaultCompressionOptions())
	if err != nil {
		db.Close()
		return nil, err
	}
	store, err := storage.NewStore(db, storage.Options{Compressor: compressor, Logger: logger})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &localBackend{db: db, store: store}, nil
}

func (b *localBackend) Files(context.Context) ([]string, error) {
	return b.store.Files()
}

func (b *localBackend) Get(_ context.Context, fileName string) (*blame.FileBlame, error) {
	return b.store.Get(fileName)
}

func (b *localBackend) Merge(_ context.Context, fb *blame.FileBlame) (*blame.FileBlame, error) {
	return b.store.Merge(fb)
}

func (b *localBackend) Put(_ context.Context, fb *blame.FileBlame) error {
	return b.store.Put(fb)
}

func (b *localBackend) Load(context.Context) (*blame.Blames, error) {
	return b.store.Load()
}

func (b *localBackend) Delete(_ context.Context, fileName string) error {
	return b.store.Delete(fileName)
}

func (b *localBackend) Close() error {
	return b.db.Close()
}

type remoteBackend struct {
	c *client.Client
}

func (b *remoteBackend) Files(ctx context.Context) ([]string, error) {
	return b.c.ListFiles(ctx)
}

func (b *remoteBackend) Get(ctx context.Context, fileName string) (*blame.FileBlame, error) {
	return b.c.GetBlame(ctx, fileName)
}

func (b *remoteBackend) Merge(ctx context.Context, fb *blame.FileBlame) (*blame.FileBlame, error) {
	return b.c.MergeBlame(ctx, fb)
}

func (b *remoteBackend) Put(ctx context.Context, fb *blame.FileBlame) error {
	return b.c.PutBlame(ctx, fb)
}

func (b *remoteBackend) Load(ctx context.Context) (*blame.Blames, error) {
	return b.c.AllBlames(ctx)
}

func (b *remoteBackend) Delete(ctx context.Context, fileName string) error {
	return b.c.DeleteBlame(ctx, fileName)
}

func (b *remoteBackend) Close() error {
	return nil
}

func openBackend(dbPath, serverURL string, logger *zap.Logger) (backend, error) {
	if serverURL != "" {
		logger.Debug("using remote backend", zap.String("server", serverURL))
		return &remoteBackend{c: client.New(serverURL)}, nil
	}
	logger.Debug("using local backend", zap.String("db", dbPath))
	return openLocal(dbPath, logger)
}
