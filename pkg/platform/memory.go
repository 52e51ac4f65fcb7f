package platform

import (
	"context"
	"sort"
	"sync"

	"github.com/nainya/metacatalog/pkg/entity"
)

var _ Registry = (*MemoryRegistry)(nil)

type definition struct {
	id   entity.ID
	data []byte
}

// MemoryRegistry is a Registry kept in process memory.
type MemoryRegistry struct {
	mu         sync.RWMutex
	namespaces map[string]struct{}
	entities   map[string]definition
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		namespaces: make(map[string]struct{}),
		entities:   make(map[string]definition),
	}
}

func (m *MemoryRegistry) CreateNamespace(_ context.Context, namespace string) error {
	if namespace == "" {
		return Error.New("empty namespace")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.namespaces[namespace] = struct{}{}
	return nil
}

func (m *MemoryRegistry) DeleteNamespace(_ context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.namespaces, namespace)
	for key, def := range m.entities {
		if def.id.NamespaceID() == namespace {
			delete(m.entities, key)
		}
	}
	return nil
}

func (m *MemoryRegistry) HasNamespace(_ context.Context, namespace string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.namespaces[namespace]
	return ok, nil
}

func (m *MemoryRegistry) Namespaces(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.namespaces))
	for ns := range m.namespaces {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryRegistry) Put(_ context.Context, id entity.ID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entities[id.String()] = definition{id: id, data: append([]byte(nil), data...)}
	return nil
}

func (m *MemoryRegistry) Get(_ context.Context, id entity.ID) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	def, ok := m.entities[id.String()]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), def.data...), true, nil
}

func (m *MemoryRegistry) Delete(_ context.Context, id entity.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entities, id.String())
	return nil
}

func (m *MemoryRegistry) List(_ context.Context, namespace string, kind entity.Kind) ([]entity.ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0)
	for key, def := range m.entities {
		if def.id.Kind() == kind && def.id.NamespaceID() == namespace {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	ids := make([]entity.ID, len(keys))
	for i, key := range keys {
		ids[i] = m.entities[key].id
	}
	return ids, nil
}

func (m *MemoryRegistry) Close() error { return nil }
