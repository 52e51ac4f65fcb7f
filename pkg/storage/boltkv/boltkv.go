// Package boltkv implements storage.Store on a bbolt database file.
package boltkv

import (
	"bytes"
	"context"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"

	"github.com/nainya/metacatalog/pkg/storage"
)

var defaultTimeout = 1 * time.Second

const (
	// fileMode sets permissions so owner can read and write
	fileMode = 0600
)

var defaultBucket = []byte("metacatalog")

// Store is a bbolt-backed storage.Store. All keys live in one bucket.
type Store struct {
	db     *bolt.DB
	bucket []byte
	Path   string
}

var _ storage.Store = (*Store)(nil)

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: defaultTimeout})
	if err != nil {
		return nil, storage.Error.Wrap(err)
	}

	s := &Store{db: db, bucket: defaultBucket, Path: path}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, storage.Error.Wrap(err)
	}
	return s, nil
}

func (s *Store) View(ctx context.Context, fn func(storage.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return storage.Error.Wrap(err)
	}
	return s.wrap(s.db.View(func(tx *bolt.Tx) error {
		return fn(&txn{bucket: tx.Bucket(s.bucket)})
	}))
}

func (s *Store) Update(ctx context.Context, fn func(storage.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return storage.Error.Wrap(err)
	}
	return s.wrap(s.db.Update(func(tx *bolt.Tx) error {
		return fn(&txn{bucket: tx.Bucket(s.bucket)})
	}))
}

// wrap maps bbolt's own errors into the storage class and leaves callback
// errors untouched.
func (s *Store) wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, berrors.ErrDatabaseNotOpen):
		return storage.ErrClosed
	case errors.Is(err, berrors.ErrTxClosed), errors.Is(err, berrors.ErrDatabaseReadOnly), errors.Is(err, berrors.ErrTimeout):
		return storage.Error.Wrap(err)
	}
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.View(ctx, func(storage.Reader) error { return nil })
}

func (s *Store) Close() error {
	return storage.Error.Wrap(s.db.Close())
}

type txn struct {
	bucket *bolt.Bucket
}

func (t *txn) Get(key []byte) ([]byte, bool, error) {
	if len(key) == 0 {
		return nil, false, nil
	}
	k, v := t.bucket.Cursor().Seek(key)
	if k == nil || !bytes.Equal(k, key) {
		return nil, false, nil
	}
	return v, true, nil
}

func (t *txn) Scan(prefix []byte, fn func(key, value []byte) bool) error {
	c := t.bucket.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if !fn(k, v) {
			return nil
		}
	}
	return nil
}

func (t *txn) Put(key, value []byte) error {
	if len(key) == 0 {
		return storage.ErrEmptyKey
	}
	// bbolt keeps references until commit
	return storage.Error.Wrap(t.bucket.Put(storage.Clone(key), storage.Clone(value)))
}

func (t *txn) Delete(key []byte) error {
	if len(key) == 0 {
		return nil
	}
	return storage.Error.Wrap(t.bucket.Delete(key))
}
