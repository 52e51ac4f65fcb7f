package lifecycle

import (
	"context"

	"github.com/nainya/metacatalog/pkg/entity"
	"github.com/nainya/metacatalog/pkg/metadata"
	"github.com/nainya/metacatalog/pkg/platform"
)

// DeployApplication creates or redeploys an application in namespace.
// Programs dropped by a redeploy lose their metadata. Streams and datasets
// the application declares are created when missing.
func (m *Manager) DeployApplication(ctx context.Context, namespace string, spec platform.ApplicationSpec) (entity.Application, error) {
	id := entity.Application{Namespace: namespace, Name: spec.Name}
	if err := checkName("application", spec.Name); err != nil {
		return id, err
	}
	seen := make(map[string]struct{}, len(spec.Programs))
	for _, p := range spec.Programs {
		if err := checkName("program", p.Name); err != nil {
			return id, err
		}
		key := id.Program(p.Type, p.Name).String()
		if _, dup := seen[key]; dup {
			return id, metadata.ErrBadRequest.New("duplicate program %s %q", p.Type.PrettyName(), p.Name)
		}
		seen[key] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireNamespace(ctx, namespace); err != nil {
		return id, err
	}

	var previous platform.ApplicationSpec
	redeploy, err := platform.GetSpec(ctx, m.registry, id, &previous)
	if err != nil {
		return id, metadata.ErrInternal.Wrap(err)
	}
	if redeploy {
		for _, p := range previous.Programs {
			program := id.Program(p.Type, p.Name)
			if _, kept := seen[program.String()]; kept {
				continue
			}
			if err := m.remove(ctx, program); err != nil {
				return id, err
			}
		}
	}

	for _, s := range spec.Streams {
		stream := entity.Stream{Namespace: namespace, Name: s.Name}
		if err := m.ensure(ctx, stream, func() error { return m.createStream(ctx, stream, s) }); err != nil {
			return id, err
		}
	}
	for _, d := range spec.Datasets {
		dataset := entity.Dataset{Namespace: namespace, Name: d.Name}
		if err := m.ensure(ctx, dataset, func() error { return m.createDataset(ctx, dataset, d) }); err != nil {
			return id, err
		}
	}

	if err := m.put(ctx, id, spec); err != nil {
		return id, err
	}
	for _, p := range spec.Programs {
		if err := m.put(ctx, id.Program(p.Type, p.Name), p); err != nil {
			return id, err
		}
	}
	if err := m.writer.WriteApplication(ctx, id, spec); err != nil {
		return id, err
	}

	action := "deployed"
	if redeploy {
		action = "redeployed"
	}
	m.event(id, action)
	return id, nil
}

// ensure runs create when id has no definition yet.
func (m *Manager) ensure(ctx context.Context, id entity.ID, create func() error) error {
	_, ok, err := m.registry.Get(ctx, id)
	if err != nil {
		return metadata.ErrInternal.Wrap(err)
	}
	if ok {
		return nil
	}
	return create()
}

// Application returns the definition of a deployed application.
func (m *Manager) Application(ctx context.Context, id entity.Application) (platform.ApplicationSpec, error) {
	var spec platform.ApplicationSpec
	if err := m.requireNamespace(ctx, id.Namespace); err != nil {
		return spec, err
	}
	ok, err := platform.GetSpec(ctx, m.registry, id, &spec)
	if err != nil {
		return spec, metadata.ErrInternal.Wrap(err)
	}
	if !ok {
		return spec, metadata.ErrNotFound.New("%s", id)
	}
	return spec, nil
}

// DeleteApplication removes an application and its programs along with
// their metadata.
func (m *Manager) DeleteApplication(ctx context.Context, id entity.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	spec, err := m.Application(ctx, id)
	if err != nil {
		return err
	}
	for _, p := range spec.Programs {
		if err := m.remove(ctx, id.Program(p.Type, p.Name)); err != nil {
			return err
		}
	}
	return m.remove(ctx, id)
}
