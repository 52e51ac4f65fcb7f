// ABOUTME: Catalog service: the metadata operations exposed to external callers
// ABOUTME: Checks entity existence, resolves scopes and refuses system writes

package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/nainya/metacatalog/pkg/entity"
	"github.com/nainya/metacatalog/pkg/metadata"
	"github.com/nainya/metacatalog/pkg/query"
)

// Entities answers whether namespaces and entities exist.
type Entities interface {
	HasNamespace(ctx context.Context, namespace string) (bool, error)
	Exists(ctx context.Context, id entity.ID) (bool, error)
	// WithEntity runs fn while id exists, holding off its deletion. A
	// missing entity is reported as NotFound.
	WithEntity(ctx context.Context, id entity.ID, fn func() error) error
}

// SearchObserver is notified of every search.
type SearchObserver interface {
	ObserveSearch(target string, results int, duration time.Duration, err error)
}

// SearchResult is one entity matched by a search.
type SearchResult struct {
	EntityID entity.ID
}

func (r SearchResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		EntityID entity.Ref `json:"entityId"`
	}{entity.Ref{ID: r.EntityID}})
}

type Option func(*Service)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithSearchObserver(o SearchObserver) Option {
	return func(s *Service) { s.observer = o }
}

// Service is the external metadata surface.
type Service struct {
	store    *metadata.Store
	entities Entities
	planner  *query.Planner
	log      zerolog.Logger
	observer SearchObserver
}

func New(store *metadata.Store, entities Entities, opts ...Option) *Service {
	s := &Service{
		store:    store,
		entities: entities,
		planner:  query.NewPlanner(store),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) require(ctx context.Context, id entity.ID) error {
	ok, err := s.entities.Exists(ctx, id)
	if err != nil {
		return metadata.ErrInternal.Wrap(err)
	}
	if !ok {
		return metadata.ErrNotFound.New("%s", id)
	}
	return nil
}

// mutate runs a user-scope write of id that no concurrent delete can orphan.
func (s *Service) mutate(ctx context.Context, id entity.ID, scope metadata.Scope, fn func() error) error {
	if err := writable(scope); err != nil {
		return err
	}
	err := s.entities.WithEntity(ctx, id, fn)
	if err != nil && !metadata.ErrBadRequest.Has(err) && !metadata.ErrNotFound.Has(err) && !metadata.ErrInternal.Has(err) {
		return metadata.ErrInternal.Wrap(err)
	}
	return err
}

// writable rejects writes to anything but the user scope.
func writable(scope metadata.Scope) error {
	if scope != metadata.User {
		return metadata.ErrBadRequest.New("%s metadata is read-only", scope)
	}
	return nil
}

func (s *Service) AddProperties(ctx context.Context, id entity.ID, scope metadata.Scope, props map[string]string) error {
	return s.mutate(ctx, id, scope, func() error {
		return s.store.AddProperties(ctx, id, scope, props)
	})
}

func (s *Service) AddTags(ctx context.Context, id entity.ID, scope metadata.Scope, tags ...string) error {
	return s.mutate(ctx, id, scope, func() error {
		return s.store.AddTags(ctx, id, scope, tags...)
	})
}

// RemoveProperties removes keys from the user record of id, or every user
// property when no key is given. Missing keys are ignored.
func (s *Service) RemoveProperties(ctx context.Context, id entity.ID, scope metadata.Scope, keys ...string) error {
	return s.mutate(ctx, id, scope, func() error {
		return s.store.RemoveProperties(ctx, id, scope, keys...)
	})
}

func (s *Service) RemoveTags(ctx context.Context, id entity.ID, scope metadata.Scope, tags ...string) error {
	return s.mutate(ctx, id, scope, func() error {
		return s.store.RemoveTags(ctx, id, scope, tags...)
	})
}

func (s *Service) RemoveMetadata(ctx context.Context, id entity.ID, scope metadata.Scope) error {
	return s.mutate(ctx, id, scope, func() error {
		return s.store.RemoveMetadata(ctx, id, scope)
	})
}

// GetMetadata returns one record per requested scope, or both records when
// none is requested.
func (s *Service) GetMetadata(ctx context.Context, id entity.ID, scopes ...metadata.Scope) ([]metadata.Record, error) {
	if err := s.require(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetMetadata(ctx, id, scopes...)
}

// GetProperties returns the properties of id in the requested scopes. With
// more than one scope, a user value wins over a system value of the same
// key.
func (s *Service) GetProperties(ctx context.Context, id entity.ID, scopes ...metadata.Scope) (map[string]string, error) {
	records, err := s.GetMetadata(ctx, id, scopes...)
	if err != nil {
		return nil, err
	}
	props := make(map[string]string)
	for i := len(records) - 1; i >= 0; i-- {
		for k, v := range records[i].Properties {
			props[k] = v
		}
	}
	return props, nil
}

// GetTags returns the union of the tags of id in the requested scopes.
func (s *Service) GetTags(ctx context.Context, id entity.ID, scopes ...metadata.Scope) ([]string, error) {
	records, err := s.GetMetadata(ctx, id, scopes...)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	tags := []string{}
	for _, r := range records {
		for _, t := range r.Tags {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				tags = append(tags, t)
			}
		}
	}
	return tags, nil
}

// Search runs q in namespace. target may be empty. An unknown namespace
// yields no results.
func (s *Service) Search(ctx context.Context, namespace, q, target string) (results []SearchResult, err error) {
	start := time.Now()
	t, err := query.ParseTarget(target)
	if err != nil {
		return nil, err
	}
	defer func() {
		if s.observer != nil {
			s.observer.ObserveSearch(t.String(), len(results), time.Since(start), err)
		}
	}()

	terms, err := query.Parse(q)
	if err != nil {
		return nil, err
	}
	ok, err := s.entities.HasNamespace(ctx, namespace)
	if err != nil {
		return nil, metadata.ErrInternal.Wrap(err)
	}
	if !ok {
		return []SearchResult{}, nil
	}

	ids, err := s.planner.Search(ctx, namespace, terms, t)
	if err != nil {
		return nil, err
	}
	results = make([]SearchResult, len(ids))
	for i, id := range ids {
		results[i] = SearchResult{EntityID: id}
	}
	s.log.Debug().
		Str("namespace", namespace).
		Str("query", q).
		Str("target", t.String()).
		Int("results", len(results)).
		Msg("metadata search")
	return results, nil
}
