// ABOUTME: In-process entity lifecycle: namespaces, applications, streams, views, datasets, artifacts
// ABOUTME: Creates write system metadata and deletes cascade metadata removal

package lifecycle

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nainya/metacatalog/pkg/entity"
	"github.com/nainya/metacatalog/pkg/metadata"
	"github.com/nainya/metacatalog/pkg/platform"
	"github.com/nainya/metacatalog/pkg/system"
)

// MetadataRemover is the part of the metadata store lifecycle events need.
type MetadataRemover interface {
	RemoveEntity(ctx context.Context, id entity.ID) error
	RemoveNamespace(ctx context.Context, namespace string) error
}

// Observer is notified of every completed lifecycle event.
type Observer interface {
	ObserveLifecycle(kind entity.Kind, action string)
}

type Option func(*Manager)

func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// Manager owns entity definitions and keeps system metadata in step with
// them. The system namespace always exists.
type Manager struct {
	mu sync.Mutex
	// gate orders metadata writes against entity deletion: WithEntity holds
	// it shared, deletes hold it exclusively.
	gate     sync.RWMutex
	registry platform.Registry
	store    MetadataRemover
	writer   *system.Writer
	log      zerolog.Logger
	observer Observer
}

func NewManager(registry platform.Registry, store MetadataRemover, writer *system.Writer, opts ...Option) *Manager {
	m := &Manager{
		registry: registry,
		store:    store,
		writer:   writer,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With().Str("component", "lifecycle").Logger()
	return m
}

func (m *Manager) event(id entity.ID, action string) {
	m.log.Info().Str("entity", id.String()).Str("action", action).Msg("lifecycle event")
	if m.observer != nil {
		m.observer.ObserveLifecycle(id.Kind(), action)
	}
}

// Init registers the default and system namespaces.
func (m *Manager) Init(ctx context.Context) error {
	for _, ns := range []string{entity.DefaultNamespace, entity.SystemNamespace} {
		if err := m.registry.CreateNamespace(ctx, ns); err != nil {
			return metadata.ErrInternal.Wrap(err)
		}
	}
	return nil
}

func (m *Manager) CreateNamespace(ctx context.Context, namespace string) error {
	if err := checkName("namespace", namespace); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.registry.CreateNamespace(ctx, namespace); err != nil {
		return metadata.ErrInternal.Wrap(err)
	}
	m.log.Info().Str("namespace", namespace).Msg("namespace created")
	return nil
}

// DeleteNamespace removes a namespace, every entity in it and all their
// metadata.
func (m *Manager) DeleteNamespace(ctx context.Context, namespace string) error {
	if namespace == entity.SystemNamespace {
		return metadata.ErrBadRequest.New("the %s namespace cannot be deleted", namespace)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireNamespace(ctx, namespace); err != nil {
		return err
	}
	m.gate.Lock()
	defer m.gate.Unlock()
	if err := m.store.RemoveNamespace(ctx, namespace); err != nil {
		return err
	}
	if err := m.registry.DeleteNamespace(ctx, namespace); err != nil {
		return metadata.ErrInternal.Wrap(err)
	}
	m.log.Info().Str("namespace", namespace).Msg("namespace deleted")
	return nil
}

func (m *Manager) HasNamespace(ctx context.Context, namespace string) (bool, error) {
	if namespace == entity.SystemNamespace {
		return true, nil
	}
	ok, err := m.registry.HasNamespace(ctx, namespace)
	if err != nil {
		return false, metadata.ErrInternal.Wrap(err)
	}
	return ok, nil
}

func (m *Manager) Namespaces(ctx context.Context) ([]string, error) {
	names, err := m.registry.Namespaces(ctx)
	if err != nil {
		return nil, metadata.ErrInternal.Wrap(err)
	}
	return names, nil
}

// Exists reports whether the namespace of id and id itself exist.
func (m *Manager) Exists(ctx context.Context, id entity.ID) (bool, error) {
	ok, err := m.HasNamespace(ctx, id.NamespaceID())
	if err != nil || !ok {
		return false, err
	}
	_, ok, err = m.registry.Get(ctx, id)
	if err != nil {
		return false, metadata.ErrInternal.Wrap(err)
	}
	return ok, nil
}

// WithEntity runs fn while id exists. Deletes of id or its namespace wait
// until fn returns, so metadata written by fn cannot outlive the entity.
// A missing entity is NotFound and fn is not called.
func (m *Manager) WithEntity(ctx context.Context, id entity.ID, fn func() error) error {
	m.gate.RLock()
	defer m.gate.RUnlock()
	if err := m.require(ctx, id); err != nil {
		return err
	}
	return fn()
}

func (m *Manager) requireNamespace(ctx context.Context, namespace string) error {
	ok, err := m.HasNamespace(ctx, namespace)
	if err != nil {
		return err
	}
	if !ok {
		return metadata.ErrNotFound.New("namespace %q", namespace)
	}
	return nil
}

func (m *Manager) require(ctx context.Context, id entity.ID) error {
	ok, err := m.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return metadata.ErrNotFound.New("%s", id)
	}
	return nil
}

func (m *Manager) put(ctx context.Context, id entity.ID, spec any) error {
	if err := platform.PutSpec(ctx, m.registry, id, spec); err != nil {
		return metadata.ErrInternal.Wrap(err)
	}
	return nil
}

// remove drops the definition and the metadata of id.
func (m *Manager) remove(ctx context.Context, id entity.ID) error {
	m.gate.Lock()
	defer m.gate.Unlock()
	if err := m.store.RemoveEntity(ctx, id); err != nil {
		return err
	}
	if err := m.registry.Delete(ctx, id); err != nil {
		return metadata.ErrInternal.Wrap(err)
	}
	m.event(id, "deleted")
	return nil
}

func checkName(what, name string) error {
	if name == "" {
		return metadata.ErrBadRequest.New("%s name must not be empty", what)
	}
	return nil
}
