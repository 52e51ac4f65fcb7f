// ABOUTME: Metadata store: per-entity, per-scope properties and tags
// ABOUTME: Record rows and the inverted index are written in one transaction

package metadata

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nainya/metacatalog/pkg/entity"
	"github.com/nainya/metacatalog/pkg/index"
	"github.com/nainya/metacatalog/pkg/storage"
)

const lockStripes = 64

// Limits bound what a single entity may carry in one scope.
type Limits struct {
	MaxProperties int
	MaxTags       int
	MaxLength     int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxProperties: 1000, MaxTags: 1000, MaxLength: DefaultMaxLength}
}

// Observer is told about every store operation.
type Observer interface {
	ObserveStoreOperation(op string, d time.Duration, err error)
	ObserveIndexRows(written, deleted int)
}

// Option configures a Store.
type Option func(*Store)

// WithLimits overrides the default limits.
func WithLimits(l Limits) Option { return func(s *Store) { s.limits = l } }

// WithLogger sets the logger used for store operations.
func WithLogger(log zerolog.Logger) Option { return func(s *Store) { s.log = log } }

// WithObserver registers an observer, typically metrics.
func WithObserver(o Observer) Option { return func(s *Store) { s.observer = o } }

// WithIndexer replaces the term router.
func WithIndexer(r *index.Router) Option { return func(s *Store) { s.indexer = r } }

// Store manages the metadata of entities and its reverse index.
type Store struct {
	kv       storage.Store
	indexer  *index.Router
	limits   Limits
	log      zerolog.Logger
	observer Observer
	locks    [lockStripes]sync.Mutex
}

// NewStore creates a metadata store over kv.
func NewStore(kv storage.Store, opts ...Option) *Store {
	s := &Store{
		kv:      kv,
		indexer: index.New(),
		limits:  DefaultLimits(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lock serializes writers of the same entity.
func (s *Store) lock(id entity.ID) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id.String()))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// mutation tracks the index rows touched by one transaction.
type mutation struct {
	s       *Store
	w       storage.Writer
	written int
	deleted int
}

func (s *Store) update(ctx context.Context, op string, id entity.ID, fn func(m *mutation) error) error {
	if id != nil {
		defer s.lock(id)()
	}

	start := time.Now()
	var m *mutation
	err := s.kv.Update(ctx, func(w storage.Writer) error {
		m = &mutation{s: s, w: w}
		return fn(m)
	})
	err = internal(err)
	s.observe(op, start, err)

	event := s.log.Debug()
	if err != nil {
		event = s.log.Error().Err(err)
	}
	if id != nil {
		event = event.Str("entity", id.String())
	}
	if err == nil && m != nil {
		event = event.Int("index_written", m.written).Int("index_deleted", m.deleted)
		if s.observer != nil {
			s.observer.ObserveIndexRows(m.written, m.deleted)
		}
	}
	event.Str("operation", op).Dur("duration_ms", time.Since(start)).Msg("metadata update")
	return err
}

func (s *Store) view(ctx context.Context, op string, fn func(r storage.Reader) error) error {
	start := time.Now()
	err := internal(s.kv.View(ctx, fn))
	s.observe(op, start, err)
	return err
}

func (s *Store) observe(op string, start time.Time, err error) {
	if s.observer != nil {
		s.observer.ObserveStoreOperation(op, time.Since(start), err)
	}
}

func (s *Store) checkProperty(scope Scope, key, value string) error {
	if scope == User {
		return validateProperty(key, value, s.limits.MaxLength)
	}
	if key == "" || value == "" {
		return ErrBadRequest.New("system property key and value must not be empty")
	}
	return nil
}

func (s *Store) checkTag(scope Scope, tag string) error {
	if scope == User {
		return validateTag(tag, s.limits.MaxLength)
	}
	if tag == "" {
		return ErrBadRequest.New("system tag must not be empty")
	}
	return nil
}

func checkScope(scope Scope) error {
	if scope != User && scope != System {
		return ErrBadRequest.New("invalid scope %d", int(scope))
	}
	return nil
}

// AddProperties merges props into the record of id in scope. An existing key
// is replaced together with its index terms.
func (s *Store) AddProperties(ctx context.Context, id entity.ID, scope Scope, props map[string]string) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	if len(props) == 0 {
		return ErrBadRequest.New("no properties to add")
	}
	for k, v := range props {
		if err := s.checkProperty(scope, k, v); err != nil {
			return err
		}
	}

	return s.update(ctx, "add_properties", id, func(m *mutation) error {
		existing, err := readRows(m.w, id, scope, rowProperty)
		if err != nil {
			return err
		}
		added := 0
		for k := range props {
			if _, ok := existing[k]; !ok {
				added++
			}
		}
		if s.limits.MaxProperties > 0 && len(existing)+added > s.limits.MaxProperties {
			return ErrBadRequest.New("%s would exceed %d properties", id, s.limits.MaxProperties)
		}
		for _, k := range sortedKeys(props) {
			if old, ok := existing[k]; ok && old == props[k] {
				continue
			}
			if err := m.putProperty(id, scope, k, props[k]); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddTags adds tags to the record of id in scope. Tags already present are
// left as they are.
func (s *Store) AddTags(ctx context.Context, id entity.ID, scope Scope, tags ...string) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	if len(tags) == 0 {
		return ErrBadRequest.New("no tags to add")
	}
	for _, t := range tags {
		if err := s.checkTag(scope, t); err != nil {
			return err
		}
	}

	return s.update(ctx, "add_tags", id, func(m *mutation) error {
		existing, err := readRows(m.w, id, scope, rowTag)
		if err != nil {
			return err
		}
		fresh := make(map[string]struct{})
		for _, t := range tags {
			if _, ok := existing[t]; !ok {
				fresh[t] = struct{}{}
			}
		}
		if s.limits.MaxTags > 0 && len(existing)+len(fresh) > s.limits.MaxTags {
			return ErrBadRequest.New("%s would exceed %d tags", id, s.limits.MaxTags)
		}
		for _, t := range sortedSet(fresh) {
			if err := m.putTag(id, scope, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetProperties returns the properties of id in scope.
func (s *Store) GetProperties(ctx context.Context, id entity.ID, scope Scope) (map[string]string, error) {
	var props map[string]string
	err := s.view(ctx, "get_properties", func(r storage.Reader) error {
		var err error
		props, err = readRows(r, id, scope, rowProperty)
		return err
	})
	return props, err
}

// GetTags returns the tags of id in scope in sorted order.
func (s *Store) GetTags(ctx context.Context, id entity.ID, scope Scope) ([]string, error) {
	var tags []string
	err := s.view(ctx, "get_tags", func(r storage.Reader) error {
		rows, err := readRows(r, id, scope, rowTag)
		tags = sortedKeys(rows)
		return err
	})
	return tags, err
}

// GetMetadata returns one record per requested scope, both scopes when none
// are given. All records are read in one View, which is a consistent
// snapshot on backends that provide one (memkv, boltkv) but not on rediskv.
func (s *Store) GetMetadata(ctx context.Context, id entity.ID, scopes ...Scope) ([]Record, error) {
	if len(scopes) == 0 {
		scopes = Scopes()
	}
	records := make([]Record, 0, len(scopes))
	err := s.view(ctx, "get_metadata", func(r storage.Reader) error {
		for _, scope := range scopes {
			props, err := readRows(r, id, scope, rowProperty)
			if err != nil {
				return err
			}
			tags, err := readRows(r, id, scope, rowTag)
			if err != nil {
				return err
			}
			records = append(records, Record{EntityID: id, Scope: scope, Properties: props, Tags: sortedKeys(tags)})
		}
		return nil
	})
	return records, err
}

// RemoveProperties removes the given keys, or every property when no key is
// given. Missing keys are ignored.
func (s *Store) RemoveProperties(ctx context.Context, id entity.ID, scope Scope, keys ...string) error {
	return s.update(ctx, "remove_properties", id, func(m *mutation) error {
		return m.removeRows(id, scope, rowProperty, keys)
	})
}

// RemoveTags removes the given tags, or every tag when none is given.
func (s *Store) RemoveTags(ctx context.Context, id entity.ID, scope Scope, tags ...string) error {
	return s.update(ctx, "remove_tags", id, func(m *mutation) error {
		return m.removeRows(id, scope, rowTag, tags)
	})
}

// RemoveMetadata clears both properties and tags of id in scope.
func (s *Store) RemoveMetadata(ctx context.Context, id entity.ID, scope Scope) error {
	return s.update(ctx, "remove_metadata", id, func(m *mutation) error {
		if err := m.removeRows(id, scope, rowProperty, nil); err != nil {
			return err
		}
		return m.removeRows(id, scope, rowTag, nil)
	})
}

// ReplaceMetadata sets the record of id in scope to exactly props and tags.
func (s *Store) ReplaceMetadata(ctx context.Context, id entity.ID, scope Scope, props map[string]string, tags []string) error {
	if err := checkScope(scope); err != nil {
		return err
	}
	for k, v := range props {
		if err := s.checkProperty(scope, k, v); err != nil {
			return err
		}
	}
	for _, t := range tags {
		if err := s.checkTag(scope, t); err != nil {
			return err
		}
	}

	return s.update(ctx, "replace_metadata", id, func(m *mutation) error {
		existing, err := readRows(m.w, id, scope, rowProperty)
		if err != nil {
			return err
		}
		var stale []string
		for k, v := range existing {
			if nv, ok := props[k]; !ok || nv != v {
				stale = append(stale, k)
			}
		}
		if len(stale) > 0 {
			if err := m.removeRows(id, scope, rowProperty, stale); err != nil {
				return err
			}
		}
		for _, k := range sortedKeys(props) {
			if old, ok := existing[k]; ok && old == props[k] {
				continue
			}
			if err := m.putProperty(id, scope, k, props[k]); err != nil {
				return err
			}
		}

		current, err := readRows(m.w, id, scope, rowTag)
		if err != nil {
			return err
		}
		want := make(map[string]struct{}, len(tags))
		for _, t := range tags {
			want[t] = struct{}{}
		}
		stale = stale[:0]
		for t := range current {
			if _, ok := want[t]; !ok {
				stale = append(stale, t)
			}
		}
		if len(stale) > 0 {
			if err := m.removeRows(id, scope, rowTag, stale); err != nil {
				return err
			}
		}
		for _, t := range sortedSet(want) {
			if _, ok := current[t]; ok {
				continue
			}
			if err := m.putTag(id, scope, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveEntity deletes every record of id in both scopes.
func (s *Store) RemoveEntity(ctx context.Context, id entity.ID) error {
	return s.update(ctx, "remove_entity", id, func(m *mutation) error {
		for _, scope := range Scopes() {
			if err := m.removeRows(id, scope, rowProperty, nil); err != nil {
				return err
			}
			if err := m.removeRows(id, scope, rowTag, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveNamespace deletes the metadata of every entity in ns.
func (s *Store) RemoveNamespace(ctx context.Context, ns string) error {
	return s.update(ctx, "remove_namespace", nil, func(m *mutation) error {
		for _, table := range []uint32{PREFIX_RECORD, PREFIX_POSTING, PREFIX_INDEX} {
			keys, err := storage.Collect(m.w, storage.EncodeKey(table, ns))
			if err != nil {
				return err
			}
			for _, k := range keys {
				if err := m.w.Delete(k); err != nil {
					return err
				}
			}
			if table == PREFIX_INDEX {
				m.deleted += len(keys)
			}
		}
		return nil
	})
}

// FindEntities returns the entities of namespace ns holding the index term,
// or any term starting with it when prefix is set. Each entity is returned
// once, in index order.
func (s *Store) FindEntities(ctx context.Context, ns, term string, prefix bool) ([]entity.ID, error) {
	var scan []byte
	if prefix {
		scan = storage.EncodePrefix(PREFIX_INDEX, term, ns)
	} else {
		scan = storage.EncodeKey(PREFIX_INDEX, ns, term)
	}

	var (
		ids     []entity.ID
		seen    = make(map[entity.ID]struct{})
		scanErr error
	)
	err := s.view(ctx, "find_entities", func(r storage.Reader) error {
		err := r.Scan(scan, func(key, _ []byte) bool {
			_, parts, err := storage.DecodeKey(key)
			if err != nil || len(parts) < 3 {
				scanErr = storage.Error.New("malformed index key")
				return false
			}
			id, _, err := splitEntity(parts[0], parts[2:])
			if err != nil {
				scanErr = err
				return false
			}
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
			return true
		})
		if err != nil {
			return err
		}
		return scanErr
	})
	return ids, err
}

func (m *mutation) putProperty(id entity.ID, scope Scope, key, value string) error {
	if err := m.removeRows(id, scope, rowProperty, []string{key}); err != nil {
		return err
	}
	if err := m.w.Put(recordKey(id, scope, rowProperty, key), []byte(value)); err != nil {
		return err
	}
	return m.putTerms(id, scope, rowProperty, key, m.s.indexer.PropertyTerms(key, value))
}

func (m *mutation) putTag(id entity.ID, scope Scope, tag string) error {
	if err := m.w.Put(recordKey(id, scope, rowTag, tag), []byte(tag)); err != nil {
		return err
	}
	return m.putTerms(id, scope, rowTag, tag, m.s.indexer.TagTerms(tag))
}

func (m *mutation) putTerms(id entity.ID, scope Scope, row, name string, terms []string) error {
	for _, term := range terms {
		if err := m.w.Put(indexKey(id, term, scope, row, name), marker); err != nil {
			return err
		}
		if err := m.w.Put(postingKey(id, scope, row, name, term), marker); err != nil {
			return err
		}
	}
	m.written += len(terms)
	return nil
}

// removeRows deletes the named rows, or all rows of the kind when names is
// empty, together with the index terms they produced.
func (m *mutation) removeRows(id entity.ID, scope Scope, row string, names []string) error {
	if len(names) == 0 {
		rows, err := readRows(m.w, id, scope, row)
		if err != nil {
			return err
		}
		names = sortedKeys(rows)
	}

	for _, name := range names {
		postings, err := storage.Collect(m.w, postingPrefix(id, scope, row, name))
		if err != nil {
			return err
		}
		for _, p := range postings {
			_, parts, err := storage.DecodeKey(p)
			if err != nil || len(parts) == 0 {
				return storage.Error.New("malformed posting key")
			}
			term := parts[len(parts)-1]
			if err := m.w.Delete(indexKey(id, term, scope, row, name)); err != nil {
				return err
			}
			if err := m.w.Delete(p); err != nil {
				return err
			}
		}
		m.deleted += len(postings)
		if err := m.w.Delete(recordKey(id, scope, row, name)); err != nil {
			return err
		}
	}
	return nil
}

// readRows returns name -> value for one row kind of a record.
func readRows(r storage.Reader, id entity.ID, scope Scope, row string) (map[string]string, error) {
	rows := make(map[string]string)
	var decodeErr error
	err := r.Scan(recordPrefix(id, scope.String(), row), func(key, value []byte) bool {
		_, parts, err := storage.DecodeKey(key)
		if err != nil || len(parts) == 0 {
			decodeErr = storage.Error.New("malformed record key")
			return false
		}
		rows[parts[len(parts)-1]] = string(value)
		return true
	})
	if err != nil {
		return nil, err
	}
	return rows, decodeErr
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
