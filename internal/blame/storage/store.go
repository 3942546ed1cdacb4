// internal/blame/storage/store.go
package storage

import (
	"fmt"
	"hash/maphash"
	"sync"

	"blamer/internal/blame"
	"blamer/internal/errors"
	"blamer/internal/storage"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const (
	defaultCacheSize = 256
	lockStripes      = 64
)

// Options configures a Store.
type Options struct {
	// Number of decoded records kept in memory.
	CacheSize int
	// Compressor for stored records, nil stores them uncompressed.
	Compressor *storage.Compressor
	Logger     *zap.Logger
}

// Store persists FileBlame records keyed by their normalized file name.
// Records handed in or out are copies; callers never share storage with the
// store or its cache.
//
// Writes to the same file are serialized so that the cache always holds the
// last committed record.
type Store struct {
	store  *storage.BadgerStore
	cache  *lru.Cache[string, *blame.FileBlame]
	logger *zap.Logger

	seed  maphash.Seed
	locks [lockStripes]sync.Mutex
}

// NewStore creates a new blame store
func NewStore(db *badger.DB, opts Options) (*Store, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	cache, err := lru.New[string, *blame.FileBlame](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	return &Store{
		store:  storage.NewBadgerStore(db, "blame", opts.Compressor),
		cache:  cache,
		logger: opts.Logger,
		seed:   maphash.MakeSeed(),
	}, nil
}

// lock acquires the stripe guarding fileName and returns its unlock.
func (s *Store) lock(fileName string) func() {
	mu := &s.locks[maphash.String(s.seed, fileName)%lockStripes]
	mu.Lock()
	return mu.Unlock
}

var _ blame.Box = (*Store)(nil)

// blameEntity wraps blame.FileBlame to implement storage.Entity
type blameEntity struct {
	*blame.FileBlame
}

func (b *blameEntity) GetID() string {
	return b.FileName()
}

// Put stores fb, replacing any record for the same file.
func (s *Store) Put(fb *blame.FileBlame) error {
	if fb == nil {
		return errors.InvalidArgument("cannot store a nil blame record")
	}
	stored := fb.Clone()
	defer s.lock(stored.FileName())()

	if err := s.store.Put(&blameEntity{stored}); err != nil {
		return fmt.Errorf("storing blame of %s: %w", fb.FileName(), err)
	}
	s.cache.Add(stored.FileName(), stored)
	return nil
}

// Get returns the record stored for fileName.
func (s *Store) Get(fileName string) (*blame.FileBlame, error) {
	key := blame.New(fileName).FileName()
	if fb, ok := s.cache.Get(key); ok {
		return fb.Clone(), nil
	}

	defer s.lock(key)()
	fb := blame.New(key)
	if err := s.store.Get(key, fb); err != nil {
		return nil, fmt.Errorf("getting blame: %w", err)
	}
	s.cache.Add(key, fb)
	return fb.Clone(), nil
}

// Merge folds fb into the stored record for the same file, creating it if
// needed, and returns the merged result.
func (s *Store) Merge(fb *blame.FileBlame) (*blame.FileBlame, error) {
	if fb == nil {
		return nil, errors.InvalidArgument("cannot merge a nil blame record")
	}
	defer s.lock(fb.FileName())()

	var merged *blame.FileBlame
	err := s.store.Upsert(fb.FileName(), func(current []byte) (storage.Entity, error) {
		merged = blame.New(fb.FileName())
		if current != nil {
			if err := merged.UnmarshalBinary(current); err != nil {
				return nil, fmt.Errorf("decoding stored blame: %w", err)
			}
		}
		if err := merged.Merge(fb); err != nil {
			return nil, err
		}
		return &blameEntity{merged}, nil
	})
	if err != nil {
		s.cache.Remove(fb.FileName())
		return nil, fmt.Errorf("merging blame of %s: %w", fb.FileName(), err)
	}

	s.cache.Add(merged.FileName(), merged)
	s.logger.Debug("merged blame",
		zap.String("file", merged.FileName()),
		zap.Int("lines", merged.Len()),
	)
	return merged.Clone(), nil
}

// Delete removes the record stored for fileName.
func (s *Store) Delete(fileName string) error {
	key := blame.New(fileName).FileName()
	defer s.lock(key)()

	s.cache.Remove(key)
	if err := s.store.Delete(key); err != nil {
		return fmt.Errorf("deleting blame: %w", err)
	}
	return nil
}

// Files returns the names of all stored files in ascending order.
func (s *Store) Files() ([]string, error) {
	return s.store.Keys()
}

// Load reads every stored record into a Blames collection.
func (s *Store) Load() (*blame.Blames, error) {
	blames := blame.NewBlames()
	err := s.store.Each(func(id string, value []byte) error {
		fb, err := blame.Decode(value)
		if err != nil {
			s.logger.Warn("skipping unreadable blame", zap.String("file", id), zap.Error(err))
			return nil
		}
		return blames.Add(fb)
	})
	if err != nil {
		return nil, err
	}
	return blames, nil
}
