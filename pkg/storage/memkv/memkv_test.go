package memkv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/metacatalog/pkg/storage"
	"github.com/nainya/metacatalog/pkg/storage/testsuite"
)

func TestSuite(t *testing.T) {
	store := New()
	defer func() { _ = store.Close() }()

	testsuite.RunTests(t, store)
}

func TestSuiteJournaled(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "meta.wal"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	testsuite.RunTests(t, store)
}

func TestSnapshotIsolation(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, func(w storage.Writer) error {
		return w.Put([]byte("k"), []byte("old"))
	}))

	err := store.View(ctx, func(r storage.Reader) error {
		// a commit landing mid-read is not visible to this snapshot
		require.NoError(t, store.Update(ctx, func(w storage.Writer) error {
			return w.Put([]byte("k"), []byte("new"))
		}))
		v, _, err := r.Get([]byte("k"))
		assert.Equal(t, "old", string(v))
		return err
	})
	require.NoError(t, err)
}

func TestJournalReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.wal")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	store.compactEvery = 3
	for _, k := range []string{"a", "b", "c", "d"} {
		k := k
		require.NoError(t, store.Update(ctx, func(w storage.Writer) error {
			return w.Put([]byte(k), []byte("v-"+k))
		}))
	}
	require.NoError(t, store.Update(ctx, func(w storage.Writer) error {
		return w.Delete([]byte("b"))
	}))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	assert.Equal(t, 3, store.Len())
	err = store.View(ctx, func(r storage.Reader) error {
		v, found, err := r.Get([]byte("d"))
		assert.True(t, found)
		assert.Equal(t, "v-d", string(v))
		_, found, _ = r.Get([]byte("b"))
		assert.False(t, found)
		return err
	})
	require.NoError(t, err)
}

func TestClosed(t *testing.T) {
	store := New()
	require.NoError(t, store.Close())

	err := store.View(context.Background(), func(storage.Reader) error { return nil })
	assert.ErrorIs(t, err, storage.ErrClosed)
	assert.ErrorIs(t, store.Ping(context.Background()), storage.ErrClosed)
}
