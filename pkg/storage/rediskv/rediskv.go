// Package rediskv implements storage.Store on Redis.
//
// Keys are kept in a sorted set with equal scores so ZRANGEBYLEX yields them
// in byte order; values live in a hash. An Update buffers its writes and
// commits them in a single MULTI/EXEC.
package rediskv

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/nainya/metacatalog/pkg/storage"
)

// Store is a Redis-backed storage.Store. Writers within one process are
// serialized; a single process should own a given key namespace.
//
// View is not a snapshot. Every Get and Scan is its own round trip, so a
// View making several reads may see a commit land between them. A single
// Scan fetches its values with one HMGET and never sees half a batch of
// overwrites.
type Store struct {
	client redis.UniversalClient
	keys   string
	values string
	mu     sync.Mutex
}

var _ storage.Store = (*Store)(nil)

// New returns a store keeping its data under the given Redis key namespace.
func New(client redis.UniversalClient, namespace string) *Store {
	if namespace == "" {
		namespace = "metacatalog"
	}
	return &Store{
		client: client,
		keys:   namespace + ":keys",
		values: namespace + ":values",
	}
}

// Dial connects to the Redis server at addr and checks it is reachable.
func Dial(ctx context.Context, addr, namespace string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, storage.Error.New("redis %s unreachable: %v", addr, err)
	}
	return New(client, namespace), nil
}

func (s *Store) View(ctx context.Context, fn func(storage.Reader) error) error {
	return fn(&reader{ctx: ctx, store: s})
}

func (s *Store) Update(ctx context.Context, fn func(storage.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := &writer{
		reader:  reader{ctx: ctx, store: s},
		puts:    map[string][]byte{},
		deletes: map[string]struct{}{},
	}
	if err := fn(w); err != nil {
		return err
	}
	return w.commit()
}

func (s *Store) Ping(ctx context.Context) error {
	return storage.Error.Wrap(s.client.Ping(ctx).Err())
}

func (s *Store) Close() error {
	return storage.Error.Wrap(s.client.Close())
}

type reader struct {
	ctx   context.Context
	store *Store
}

func (r *reader) Get(key []byte) ([]byte, bool, error) {
	v, err := r.store.client.HGet(r.ctx, r.store.values, string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storage.Error.Wrap(err)
	}
	return v, true, nil
}

// members lists the stored keys with the given prefix in byte order.
func (r *reader) members(prefix []byte) ([]string, error) {
	by := &redis.ZRangeBy{Min: "-", Max: "+"}
	if len(prefix) > 0 {
		by.Min = "[" + string(prefix)
		if end := storage.PrefixEnd(prefix); end != nil {
			by.Max = "(" + string(end)
		}
	}
	members, err := r.store.client.ZRangeByLex(r.ctx, r.store.keys, by).Result()
	return members, storage.Error.Wrap(err)
}

// values fetches the values of keys; missing entries come back nil.
func (r *reader) values(keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	raw, err := r.store.client.HMGet(r.ctx, r.store.values, keys...).Result()
	if err != nil {
		return nil, storage.Error.Wrap(err)
	}
	for i, v := range raw {
		if s, ok := v.(string); ok {
			out[i] = []byte(s)
		}
	}
	return out, nil
}

func (r *reader) Scan(prefix []byte, fn func(key, value []byte) bool) error {
	keys, err := r.members(prefix)
	if err != nil {
		return err
	}
	values, err := r.values(keys)
	if err != nil {
		return err
	}
	for i, k := range keys {
		// removed between the two round trips
		if values[i] == nil {
			continue
		}
		if !fn([]byte(k), values[i]) {
			return nil
		}
	}
	return nil
}

type writer struct {
	reader
	puts    map[string][]byte
	deletes map[string]struct{}
}

func (w *writer) Get(key []byte) ([]byte, bool, error) {
	k := string(key)
	if v, ok := w.puts[k]; ok {
		return v, true, nil
	}
	if _, ok := w.deletes[k]; ok {
		return nil, false, nil
	}
	return w.reader.Get(key)
}

func (w *writer) Scan(prefix []byte, fn func(key, value []byte) bool) error {
	stored, err := w.members(prefix)
	if err != nil {
		return err
	}

	merged := make(map[string]struct{}, len(stored)+len(w.puts))
	for _, k := range stored {
		if _, deleted := w.deletes[k]; !deleted {
			merged[k] = struct{}{}
		}
	}
	for k := range w.puts {
		if strings.HasPrefix(k, string(prefix)) {
			merged[k] = struct{}{}
		}
	}

	keys := make([]string, 0, len(merged))
	var remote []string
	for k := range merged {
		keys = append(keys, k)
		if _, local := w.puts[k]; !local {
			remote = append(remote, k)
		}
	}
	sort.Strings(keys)

	fetched, err := w.values(remote)
	if err != nil {
		return err
	}
	values := make(map[string][]byte, len(remote))
	for i, k := range remote {
		values[k] = fetched[i]
	}

	for _, k := range keys {
		v, local := w.puts[k]
		if !local {
			v = values[k]
			if v == nil {
				continue
			}
		}
		if !fn([]byte(k), v) {
			return nil
		}
	}
	return nil
}

func (w *writer) Put(key, value []byte) error {
	if len(key) == 0 {
		return storage.ErrEmptyKey
	}
	k := string(key)
	if value == nil {
		value = []byte{}
	}
	w.puts[k] = storage.Clone(value)
	delete(w.deletes, k)
	return nil
}

func (w *writer) Delete(key []byte) error {
	k := string(key)
	delete(w.puts, k)
	w.deletes[k] = struct{}{}
	return nil
}

func (w *writer) commit() error {
	if len(w.puts) == 0 && len(w.deletes) == 0 {
		return nil
	}
	s := w.store
	_, err := s.client.TxPipelined(w.ctx, func(pipe redis.Pipeliner) error {
		for k, v := range w.puts {
			pipe.HSet(w.ctx, s.values, k, v)
			pipe.ZAdd(w.ctx, s.keys, redis.Z{Score: 0, Member: k})
		}
		for k := range w.deletes {
			pipe.HDel(w.ctx, s.values, k)
			pipe.ZRem(w.ctx, s.keys, k)
		}
		return nil
	})
	return storage.Error.Wrap(err)
}
