package storage

import (
	"bytes"
	"fmt"
	"testing"

	"blamer/internal/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEntity struct {
	id   string
	body []byte
}

func (e *testEntity) GetID() string { return e.id }

func (e *testEntity) MarshalBinary() ([]byte, error) { return e.body, nil }

func (e *testEntity) UnmarshalBinary(data []byte) error {
	e.body = append([]byte(nil), data...)
	return nil
}

func setupTestDB(t *testing.T) *badger.DB {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable logging for tests

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBadgerStore(t *testing.T) {
	compressor, err := NewCompressor(CompressionOptions{MinSize: 64, Level: 2})
	require.NoError(t, err)
	store := NewBadgerStore(setupTestDB(t), "test", compressor)

	t.Run("Put", func(t *testing.T) {
		require.NoError(t, store.Put(&testEntity{id: "a", body: []byte("first")}))
		require.NoError(t, store.Put(&testEntity{id: "a", body: []byte("hello")}))

		var got testEntity
		require.NoError(t, store.Get("a", &got))
		assert.Equal(t, []byte("hello"), got.body)

		err := store.Put(&testEntity{})
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	})

	t.Run("GetAndPut", func(t *testing.T) {
		big := bytes.Repeat([]byte("blame "), 100)
		require.NoError(t, store.Put(&testEntity{id: "big", body: big}))

		var got testEntity
		require.NoError(t, store.Get("big", &got))
		assert.Equal(t, big, got.body)

		err := store.Get("missing", &got)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})

	t.Run("Upsert", func(t *testing.T) {
		appendX := func(current []byte) (Entity, error) {
			return &testEntity{id: "counter", body: append(current, 'x')}, nil
		}
		require.NoError(t, store.Upsert("counter", appendX))
		require.NoError(t, store.Upsert("counter", appendX))

		var got testEntity
		require.NoError(t, store.Get("counter", &got))
		assert.Equal(t, []byte("xx"), got.body)

		err := store.Upsert("counter", func([]byte) (Entity, error) {
			return nil, fmt.Errorf("boom")
		})
		assert.EqualError(t, err, "boom")

		err = store.Upsert("counter", func([]byte) (Entity, error) {
			return &testEntity{id: "other"}, nil
		})
		assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidArgument))
	})

	t.Run("KeysAndEach", func(t *testing.T) {
		keys, err := store.Keys()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "big", "counter"}, keys)

		seen := map[string]int{}
		require.NoError(t, store.Each(func(id string, value []byte) error {
			seen[id] = len(value)
			return nil
		}))
		assert.Equal(t, map[string]int{"a": 5, "big": 600, "counter": 2}, seen)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete("a"))

		err := store.Delete("a")
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})
}

func TestCompressor(t *testing.T) {
	c, err := NewCompressor(CompressionOptions{MinSize: 16, Level: 3})
	require.NoError(t, err)

	small := []byte("short")
	assert.Equal(t, small, c.Compress(small))

	large := bytes.Repeat([]byte("abcdefgh"), 64)
	compressed := c.Compress(large)
	assert.True(t, bytes.HasPrefix(compressed, zstdMagic))
	assert.Less(t, len(compressed), len(large))

	out, err := c.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, large, out)

	out, err = c.Decompress(small)
	require.NoError(t, err)
	assert.Equal(t, small, out)

	var none *Compressor
	assert.Equal(t, large, none.Compress(large))
	_, err = none.Decompress(compressed)
	assert.Error(t, err)
}
