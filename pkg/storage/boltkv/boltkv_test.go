package boltkv

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
	store, err := Open(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	testsuite.RunTests(t, store)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, func(w storage.Writer) error {
		return w.Put([]byte("k"), []byte("v"))
	}))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	err = store.View(ctx, func(r storage.Reader) error {
		v, found, err := r.Get([]byte("k"))
		assert.True(t, found)
		assert.Equal(t, "v", string(v))
		return err
	})
	require.NoError(t, err)
}

func TestClosed(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Ping(context.Background()), storage.ErrClosed)
}
