// Package memkv implements storage.Store on an immutable radix tree.
//
// Every committed Update publishes a new tree root, so readers work on a
// snapshot and never wait for writers. Writers are serialized. An optional
// write-ahead journal makes the store durable.
package memkv

import (
	"context"
	"sync"
	"sync/atomic"

	iradix "github.com/hashicorp/go-immutable-radix/v2"

	"github.com/nainya/metacatalog/pkg/storage"
	"github.com/nainya/metacatalog/pkg/wal"
)

// DefaultCompactEvery is the number of journaled commits after which the
// journal is rewritten as a snapshot.
const DefaultCompactEvery = 1024

// Store is an in-memory storage.Store.
type Store struct {
	mu   sync.Mutex
	root atomic.Pointer[iradix.Tree[[]byte]]

	journal      *wal.WAL
	commits      int
	compactEvery int
	closed       atomic.Bool
}

var _ storage.Store = (*Store)(nil)

// New returns an empty, volatile store.
func New() *Store {
	s := &Store{compactEvery: DefaultCompactEvery}
	s.root.Store(iradix.New[[]byte]())
	return s
}

// Open returns a store backed by the journal at path, replaying any
// committed batches found there.
func Open(path string) (*Store, error) {
	journal, err := wal.Open(path)
	if err != nil {
		return nil, storage.Error.Wrap(err)
	}

	txn := iradix.New[[]byte]().Txn()
	err = journal.Replay(func(op wal.Op) error {
		switch op.Type {
		case wal.OpPut:
			txn.Insert(op.Key, op.Value)
		case wal.OpDelete:
			txn.Delete(op.Key)
		}
		return nil
	})
	if err != nil {
		_ = journal.Close()
		return nil, storage.Error.Wrap(err)
	}

	s := &Store{journal: journal, compactEvery: DefaultCompactEvery}
	s.root.Store(txn.Commit())
	return s, nil
}

// Len returns the number of keys in the current snapshot.
func (s *Store) Len() int { return s.root.Load().Len() }

func (s *Store) View(ctx context.Context, fn func(storage.Reader) error) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return storage.Error.Wrap(err)
	}
	return fn(&reader{root: s.root.Load().Root()})
}

func (s *Store) Update(ctx context.Context, fn func(storage.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return storage.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return storage.Error.Wrap(err)
	}

	w := &writer{txn: s.root.Load().Txn()}
	if err := fn(w); err != nil {
		return err
	}
	if len(w.ops) == 0 {
		return nil
	}

	tree := w.txn.Commit()
	if s.journal != nil {
		if err := s.journal.AppendBatch(w.ops); err != nil {
			return storage.Error.Wrap(err)
		}
		s.commits++
		if s.commits >= s.compactEvery {
			if err := s.compact(tree); err != nil {
				return err
			}
		}
	}
	s.root.Store(tree)
	return nil
}

// compact rewrites the journal so it holds only the live keys of tree.
func (s *Store) compact(tree *iradix.Tree[[]byte]) error {
	ops := make([]wal.Op, 0, tree.Len())
	it := tree.Root().Iterator()
	for key, value, ok := it.Next(); ok; key, value, ok = it.Next() {
		ops = append(ops, wal.Op{Type: wal.OpPut, Key: key, Value: value})
	}
	if err := s.journal.Rewrite(ops); err != nil {
		return storage.Error.Wrap(err)
	}
	s.commits = 0
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Swap(true) {
		return nil
	}
	if s.journal != nil {
		return storage.Error.Wrap(s.journal.Close())
	}
	return nil
}

type reader struct {
	root *iradix.Node[[]byte]
}

func (r *reader) Get(key []byte) ([]byte, bool, error) {
	v, ok := r.root.Get(key)
	return v, ok, nil
}

func (r *reader) Scan(prefix []byte, fn func(key, value []byte) bool) error {
	scanNode(r.root, prefix, fn)
	return nil
}

func scanNode(root *iradix.Node[[]byte], prefix []byte, fn func(key, value []byte) bool) {
	it := root.Iterator()
	it.SeekPrefix(prefix)
	for key, value, ok := it.Next(); ok; key, value, ok = it.Next() {
		if !fn(key, value) {
			return
		}
	}
}

type writer struct {
	txn *iradix.Txn[[]byte]
	ops []wal.Op
}

func (w *writer) Get(key []byte) ([]byte, bool, error) {
	v, ok := w.txn.Get(key)
	return v, ok, nil
}

// Scan iterates the transaction's current root. Callers must not write from
// inside fn.
func (w *writer) Scan(prefix []byte, fn func(key, value []byte) bool) error {
	scanNode(w.txn.Root(), prefix, fn)
	return nil
}

func (w *writer) Put(key, value []byte) error {
	if len(key) == 0 {
		return storage.ErrEmptyKey
	}
	key, value = storage.Clone(key), storage.Clone(value)
	if value == nil {
		value = []byte{}
	}
	w.txn.Insert(key, value)
	w.ops = append(w.ops, wal.Op{Type: wal.OpPut, Key: key, Value: value})
	return nil
}

func (w *writer) Delete(key []byte) error {
	if _, existed := w.txn.Delete(key); existed {
		w.ops = append(w.ops, wal.Op{Type: wal.OpDelete, Key: storage.Clone(key)})
	}
	return nil
}
