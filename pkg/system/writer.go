package system

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nainya/metacatalog/pkg/entity"
	"github.com/nainya/metacatalog/pkg/metadata"
	"github.com/nainya/metacatalog/pkg/platform"
)

// Store is the part of the metadata store the writer needs.
type Store interface {
	ReplaceMetadata(ctx context.Context, id entity.ID, scope metadata.Scope, props map[string]string, tags []string) error
}

// Writer replaces the system record of an entity whenever its definition
// is created or changes.
type Writer struct {
	store Store
	log   zerolog.Logger
}

func NewWriter(store Store, log zerolog.Logger) *Writer {
	return &Writer{store: store, log: log.With().Str("component", "system_metadata").Logger()}
}

func (w *Writer) write(ctx context.Context, id entity.ID, m Metadata) error {
	if err := w.store.ReplaceMetadata(ctx, id, metadata.System, m.Properties, m.Tags); err != nil {
		return err
	}
	w.log.Debug().
		Str("entity", id.String()).
		Int("properties", len(m.Properties)).
		Int("tags", len(m.Tags)).
		Msg("system metadata written")
	return nil
}

func (w *Writer) WriteStream(ctx context.Context, id entity.Stream, spec platform.StreamSpec) error {
	return w.write(ctx, id, ForStream(id, spec))
}

func (w *Writer) WriteView(ctx context.Context, id entity.View, spec platform.ViewSpec) error {
	return w.write(ctx, id, ForView(id, spec))
}

func (w *Writer) WriteDataset(ctx context.Context, id entity.Dataset, spec platform.DatasetSpec) error {
	return w.write(ctx, id, ForDataset(id, spec))
}

func (w *Writer) WriteArtifact(ctx context.Context, id entity.Artifact, spec platform.ArtifactSpec) error {
	return w.write(ctx, id, ForArtifact(id, spec))
}

// WriteApplication writes the application record and the record of each
// of its programs.
func (w *Writer) WriteApplication(ctx context.Context, id entity.Application, spec platform.ApplicationSpec) error {
	if err := w.write(ctx, id, ForApplication(id, spec)); err != nil {
		return err
	}
	for _, p := range spec.Programs {
		if err := w.WriteProgram(ctx, id.Program(p.Type, p.Name), p); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) WriteProgram(ctx context.Context, id entity.Program, spec platform.ProgramSpec) error {
	return w.write(ctx, id, ForProgram(id, spec))
}
