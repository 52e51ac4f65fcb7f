package lifecycle

import (
	"context"

	"github.com/nainya/metacatalog/pkg/entity"
	"github.com/nainya/metacatalog/pkg/metadata"
	"github.com/nainya/metacatalog/pkg/platform"
	"github.com/nainya/metacatalog/pkg/schema"
)

func checkSchema(text string) error {
	if text == "" {
		return nil
	}
	if _, err := schema.Parse(text); err != nil {
		return metadata.ErrBadRequest.Wrap(err)
	}
	return nil
}

// CreateStream creates a stream, or replaces the definition of an existing
// one.
func (m *Manager) CreateStream(ctx context.Context, id entity.Stream, spec platform.StreamSpec) error {
	if err := checkName("stream", id.Name); err != nil {
		return err
	}
	if err := checkSchema(spec.Schema); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireNamespace(ctx, id.Namespace); err != nil {
		return err
	}
	return m.createStream(ctx, id, spec)
}

func (m *Manager) createStream(ctx context.Context, id entity.Stream, spec platform.StreamSpec) error {
	spec.Name = id.Name
	if err := m.put(ctx, id, spec); err != nil {
		return err
	}
	if err := m.writer.WriteStream(ctx, id, spec); err != nil {
		return err
	}
	m.event(id, "created")
	return nil
}

// UpdateStreamProperties changes the ttl and schema of an existing stream.
// A zero ttl or empty schema keeps the current value.
func (m *Manager) UpdateStreamProperties(ctx context.Context, id entity.Stream, ttl int64, schemaText string) error {
	if err := checkSchema(schemaText); err != nil {
		return err
	}
	if ttl < 0 {
		return metadata.ErrBadRequest.New("ttl must not be negative")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var spec platform.StreamSpec
	if err := m.load(ctx, id, &spec); err != nil {
		return err
	}
	if ttl > 0 {
		spec.TTL = ttl
	}
	if schemaText != "" {
		spec.Schema = schemaText
	}
	if err := m.put(ctx, id, spec); err != nil {
		return err
	}
	if err := m.writer.WriteStream(ctx, id, spec); err != nil {
		return err
	}
	m.event(id, "updated")
	return nil
}

// DeleteStream removes a stream and its views.
func (m *Manager) DeleteStream(ctx context.Context, id entity.Stream) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require(ctx, id); err != nil {
		return err
	}

	views, err := m.registry.List(ctx, id.Namespace, entity.KindView)
	if err != nil {
		return metadata.ErrInternal.Wrap(err)
	}
	for _, v := range views {
		if parent, _ := entity.Parent(v); parent == entity.ID(id) {
			if err := m.remove(ctx, v); err != nil {
				return err
			}
		}
	}
	return m.remove(ctx, id)
}

// CreateView creates or updates a view over an existing stream.
func (m *Manager) CreateView(ctx context.Context, id entity.View, spec platform.ViewSpec) error {
	if err := checkName("view", id.Name); err != nil {
		return err
	}
	if err := checkSchema(spec.Schema); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require(ctx, id.Stream); err != nil {
		return err
	}

	spec.Name = id.Name
	if err := m.put(ctx, id, spec); err != nil {
		return err
	}
	if err := m.writer.WriteView(ctx, id, spec); err != nil {
		return err
	}
	m.event(id, "created")
	return nil
}

func (m *Manager) DeleteView(ctx context.Context, id entity.View) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require(ctx, id); err != nil {
		return err
	}
	return m.remove(ctx, id)
}

// CreateDataset creates or updates a dataset instance.
func (m *Manager) CreateDataset(ctx context.Context, id entity.Dataset, spec platform.DatasetSpec) error {
	if err := checkName("dataset", id.Name); err != nil {
		return err
	}
	if err := checkSchema(spec.Schema); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireNamespace(ctx, id.Namespace); err != nil {
		return err
	}
	return m.createDataset(ctx, id, spec)
}

func (m *Manager) createDataset(ctx context.Context, id entity.Dataset, spec platform.DatasetSpec) error {
	spec.Name = id.Name
	if err := m.put(ctx, id, spec); err != nil {
		return err
	}
	if err := m.writer.WriteDataset(ctx, id, spec); err != nil {
		return err
	}
	m.event(id, "created")
	return nil
}

func (m *Manager) DeleteDataset(ctx context.Context, id entity.Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require(ctx, id); err != nil {
		return err
	}
	return m.remove(ctx, id)
}

// AddArtifact registers an artifact version. Artifacts may live in the
// system namespace.
func (m *Manager) AddArtifact(ctx context.Context, id entity.Artifact, spec platform.ArtifactSpec) error {
	if err := checkName("artifact", id.Name); err != nil {
		return err
	}
	if err := checkName("artifact version", id.Version); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireNamespace(ctx, id.Namespace); err != nil {
		return err
	}

	spec.Name, spec.Version = id.Name, id.Version
	if err := m.put(ctx, id, spec); err != nil {
		return err
	}
	if err := m.writer.WriteArtifact(ctx, id, spec); err != nil {
		return err
	}
	m.event(id, "created")
	return nil
}

func (m *Manager) DeleteArtifact(ctx context.Context, id entity.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.require(ctx, id); err != nil {
		return err
	}
	return m.remove(ctx, id)
}

func (m *Manager) load(ctx context.Context, id entity.ID, spec any) error {
	if err := m.requireNamespace(ctx, id.NamespaceID()); err != nil {
		return err
	}
	ok, err := platform.GetSpec(ctx, m.registry, id, spec)
	if err != nil {
		return metadata.ErrInternal.Wrap(err)
	}
	if !ok {
		return metadata.ErrNotFound.New("%s", id)
	}
	return nil
}
