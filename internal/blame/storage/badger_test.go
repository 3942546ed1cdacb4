package storage

import (
	"fmt"
	"sync"
	"testing"

	"blamer/internal/blame"
	"blamer/internal/errors"
	"blamer/internal/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *badger.DB {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable logging for tests

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newRecord(file string, lines ...int) *blame.FileBlame {
	fb := blame.New(file)
	for _, line := range lines {
		fb.SetCommit(line, fmt.Sprintf("commit-%d", line))
		fb.SetName(line, "name")
		fb.SetEmail(line, "email")
		fb.SetTime(line, int64(1000+line))
	}
	return fb
}

func TestBlameStore(t *testing.T) {
	compressor, err := storage.NewCompressor(storage.CompressionOptions{MinSize: 128, Level: 2})
	require.NoError(t, err)
	store, err := NewStore(setupTestDB(t), Options{CacheSize: 2, Compressor: compressor})
	require.NoError(t, err)

	t.Run("PutAndGet", func(t *testing.T) {
		fb := newRecord(`src\main.go`, 1, 2, 3)
		require.NoError(t, store.Put(fb))

		got, err := store.Get("src/main.go")
		require.NoError(t, err)
		assert.True(t, fb.Equal(got))

		// returned records are copies
		got.SetCommit(1, "changed")
		again, err := store.Get(`src\main.go`)
		require.NoError(t, err)
		assert.Equal(t, "commit-1", again.Commit(1))

		_, err = store.Get("missing.go")
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})

	t.Run("Merge", func(t *testing.T) {
		merged, err := store.Merge(newRecord("merge.go", 1))
		require.NoError(t, err)
		assert.Equal(t, []int{1}, merged.LineNumbers())

		merged, err = store.Merge(newRecord("merge.go", 2, 3))
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, merged.LineNumbers())

		overlap := blame.New("merge.go")
		overlap.SetCommit(2, "rewritten")
		_, err = store.Merge(overlap)
		require.NoError(t, err)

		got, err := store.Get("merge.go")
		require.NoError(t, err)
		assert.Equal(t, "rewritten", got.Commit(2))
		assert.Equal(t, blame.Empty, got.Name(2))
		assert.Equal(t, "commit-3", got.Commit(3))
	})

	t.Run("LargeRecordsAreCompressed", func(t *testing.T) {
		lines := make([]int, 200)
		for i := range lines {
			lines[i] = i + 1
		}
		fb := newRecord("big.go", lines...)
		require.NoError(t, store.Put(fb))

		// evict from the cache so the value is decoded from badger
		store.cache.Purge()
		got, err := store.Get("big.go")
		require.NoError(t, err)
		assert.True(t, fb.Equal(got))
	})

	t.Run("FilesAndLoad", func(t *testing.T) {
		files, err := store.Files()
		require.NoError(t, err)
		assert.Equal(t, []string{"big.go", "merge.go", "src/main.go"}, files)

		blames, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, files, blames.Files())
		fb, ok := blames.Get("merge.go")
		require.True(t, ok)
		assert.Equal(t, 3, fb.Len())
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete("merge.go"))

		_, err := store.Get("merge.go")
		assert.Error(t, err)

		err = store.Delete("merge.go")
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})
}

func TestBlameStore_ConcurrentMerges(t *testing.T) {
	store, err := NewStore(setupTestDB(t), Options{CacheSize: 8})
	require.NoError(t, err)

	const (
		files   = 50
		writers = 8
	)
	var wg sync.WaitGroup
	errs := make(chan error, files*writers)
	for f := 0; f < files; f++ {
		for w := 1; w <= writers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.Merge(newRecord(fmt.Sprintf("f%d.go", f), w)); err != nil {
					errs <- err
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	want := []int{1, 2, 3, 4, 5, 6, 7, 8}
	for f := 0; f < files; f++ {
		name := fmt.Sprintf("f%d.go", f)

		cached, err := store.Get(name)
		require.NoError(t, err)
		assert.Equal(t, want, cached.LineNumbers(), name)

		// the cached copy matches what was committed
		stored := blame.New(name)
		require.NoError(t, store.store.Get(name, stored))
		assert.True(t, stored.Equal(cached), name)
	}
}

func TestBlameStore_NilRecords(t *testing.T) {
	store, err := NewStore(setupTestDB(t), Options{})
	require.NoError(t, err)

	assert.True(t, errors.IsType(store.Put(nil), errors.ErrorTypeInvalidArgument))
	_, err = store.Merge(nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
}
