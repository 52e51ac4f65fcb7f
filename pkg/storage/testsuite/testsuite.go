// Package testsuite holds conformance tests every storage.Store backend must pass.
package testsuite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/metacatalog/pkg/storage"
)

// RunTests runs common storage.Store tests against an empty store.
func RunTests(t *testing.T, store storage.Store) {
	t.Run("CRUD", func(t *testing.T) { testCRUD(t, store) })
	t.Run("Constraints", func(t *testing.T) { testConstraints(t, store) })
	t.Run("Prefix", func(t *testing.T) { testPrefix(t, store) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, store) })
	t.Run("ReadYourWrites", func(t *testing.T) { testReadYourWrites(t, store) })
	t.Run("Parallel", func(t *testing.T) { testParallel(t, store) })
	t.Run("AtomicVisibility", func(t *testing.T) { testAtomicVisibility(t, store) })
}

func put(t *testing.T, store storage.Store, key, value string) {
	t.Helper()
	err := store.Update(context.Background(), func(w storage.Writer) error {
		return w.Put([]byte(key), []byte(value))
	})
	require.NoError(t, err)
}

func get(t *testing.T, store storage.Store, key string) (string, bool) {
	t.Helper()
	var (
		value string
		found bool
	)
	err := store.View(context.Background(), func(r storage.Reader) error {
		v, ok, err := r.Get([]byte(key))
		value, found = string(v), ok
		return err
	})
	require.NoError(t, err)
	return value, found
}

func scan(t *testing.T, store storage.Store, prefix string) []string {
	t.Helper()
	var keys []string
	err := store.View(context.Background(), func(r storage.Reader) error {
		return r.Scan([]byte(prefix), func(key, _ []byte) bool {
			keys = append(keys, string(key))
			return true
		})
	})
	require.NoError(t, err)
	return keys
}

func cleanup(t *testing.T, store storage.Store, prefix string) {
	t.Helper()
	err := store.Update(context.Background(), func(w storage.Writer) error {
		keys, err := storage.Collect(w, []byte(prefix))
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := w.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func testCRUD(t *testing.T, store storage.Store) {
	defer cleanup(t, store, "crud/")

	put(t, store, "crud/a", "1")
	value, found := get(t, store, "crud/a")
	assert.True(t, found)
	assert.Equal(t, "1", value)

	put(t, store, "crud/a", "2")
	value, _ = get(t, store, "crud/a")
	assert.Equal(t, "2", value)

	err := store.Update(context.Background(), func(w storage.Writer) error {
		return w.Delete([]byte("crud/a"))
	})
	require.NoError(t, err)

	_, found = get(t, store, "crud/a")
	assert.False(t, found)

	// deleting a missing key is not an error
	err = store.Update(context.Background(), func(w storage.Writer) error {
		return w.Delete([]byte("crud/missing"))
	})
	assert.NoError(t, err)
}

func testConstraints(t *testing.T, store storage.Store) {
	err := store.Update(context.Background(), func(w storage.Writer) error {
		return w.Put(nil, []byte("x"))
	})
	assert.Error(t, err, "putting empty key should fail")

	require.NoError(t, store.Ping(context.Background()))
}

func testPrefix(t *testing.T, store storage.Store) {
	defer cleanup(t, store, "prefix/")

	for _, k := range []string{"prefix/b/2", "prefix/a/1", "prefix/b/1", "prefix/c", "prefix/a/2"} {
		put(t, store, k, "v")
	}

	assert.Equal(t, []string{"prefix/a/1", "prefix/a/2", "prefix/b/1", "prefix/b/2", "prefix/c"}, scan(t, store, "prefix/"))
	assert.Equal(t, []string{"prefix/b/1", "prefix/b/2"}, scan(t, store, "prefix/b/"))
	assert.Empty(t, scan(t, store, "prefix/d"))

	var first []string
	err := store.View(context.Background(), func(r storage.Reader) error {
		return r.Scan([]byte("prefix/"), func(key, _ []byte) bool {
			first = append(first, string(key))
			return len(first) < 2
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"prefix/a/1", "prefix/a/2"}, first)
}

func testRollback(t *testing.T, store storage.Store) {
	defer cleanup(t, store, "rollback/")

	put(t, store, "rollback/kept", "v")

	boom := errors.New("boom")
	err := store.Update(context.Background(), func(w storage.Writer) error {
		if err := w.Put([]byte("rollback/new"), []byte("v")); err != nil {
			return err
		}
		if err := w.Delete([]byte("rollback/kept")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, found := get(t, store, "rollback/new")
	assert.False(t, found)
	_, found = get(t, store, "rollback/kept")
	assert.True(t, found)
}

func testReadYourWrites(t *testing.T, store storage.Store) {
	defer cleanup(t, store, "ryw/")

	put(t, store, "ryw/a", "old")
	put(t, store, "ryw/c", "v")

	err := store.Update(context.Background(), func(w storage.Writer) error {
		if err := w.Put([]byte("ryw/a"), []byte("new")); err != nil {
			return err
		}
		if err := w.Put([]byte("ryw/b"), []byte("v")); err != nil {
			return err
		}
		if err := w.Delete([]byte("ryw/c")); err != nil {
			return err
		}

		value, found, err := w.Get([]byte("ryw/a"))
		if err != nil {
			return err
		}
		assert.True(t, found)
		assert.Equal(t, "new", string(value))

		_, found, err = w.Get([]byte("ryw/c"))
		if err != nil {
			return err
		}
		assert.False(t, found)

		keys, err := storage.Collect(w, []byte("ryw/"))
		if err != nil {
			return err
		}
		assert.Equal(t, [][]byte{[]byte("ryw/a"), []byte("ryw/b")}, keys)
		return nil
	})
	require.NoError(t, err)
}

func testParallel(t *testing.T, store storage.Store) {
	defer cleanup(t, store, "parallel/")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("parallel/%02d", i)
			err := store.Update(context.Background(), func(w storage.Writer) error {
				return w.Put([]byte(key), []byte("v"))
			})
			assert.NoError(t, err)
			err = store.View(context.Background(), func(r storage.Reader) error {
				_, found, err := r.Get([]byte(key))
				assert.True(t, found)
				return err
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, scan(t, store, "parallel/"), 10)
}

// testAtomicVisibility checks that readers running next to writers see a
// batch either completely or not at all.
func testAtomicVisibility(t *testing.T, store storage.Store) {
	defer cleanup(t, store, "atomic/")
	ctx := context.Background()

	const writers, rounds = 4, 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				value := []byte(fmt.Sprintf("%d-%d", i, r))
				err := store.Update(ctx, func(w storage.Writer) error {
					if err := w.Put([]byte(fmt.Sprintf("atomic/%d/a", i)), value); err != nil {
						return err
					}
					return w.Put([]byte(fmt.Sprintf("atomic/%d/b", i)), value)
				})
				assert.NoError(t, err)
			}
		}(i)
	}

	done := make(chan struct{})
	var readers sync.WaitGroup
	for i := 0; i < writers; i++ {
		readers.Add(1)
		go func(i int) {
			defer readers.Done()
			prefix := []byte(fmt.Sprintf("atomic/%d/", i))
			for {
				select {
				case <-done:
					return
				default:
				}
				var values []string
				err := store.View(ctx, func(r storage.Reader) error {
					return r.Scan(prefix, func(_, value []byte) bool {
						values = append(values, string(value))
						return true
					})
				})
				assert.NoError(t, err)
				if len(values) == 2 {
					assert.Equal(t, values[0], values[1], "batch observed half applied")
				} else {
					assert.Empty(t, values, "batch observed half applied")
				}
			}
		}(i)
	}

	wg.Wait()
	close(done)
	readers.Wait()

	for i := 0; i < writers; i++ {
		want := fmt.Sprintf("%d-%d", i, rounds-1)
		a, _ := get(t, store, fmt.Sprintf("atomic/%d/a", i))
		b, _ := get(t, store, fmt.Sprintf("atomic/%d/b", i))
		assert.Equal(t, want, a)
		assert.Equal(t, want, b)
	}
}
