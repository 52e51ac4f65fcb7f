package system

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/metacatalog/pkg/entity"
	"github.com/nainya/metacatalog/pkg/metadata"
	"github.com/nainya/metacatalog/pkg/platform"
	"github.com/nainya/metacatalog/pkg/storage/memkv"
)

func setupWriter(t *testing.T) (*Writer, *metadata.Store) {
	kv := memkv.New()
	t.Cleanup(func() { _ = kv.Close() })
	store := metadata.NewStore(kv)
	return NewWriter(store, zerolog.Nop()), store
}

func TestWriteApplicationReplaces(t *testing.T) {
	w, store := setupWriter(t)
	ctx := context.Background()

	spec := platform.ApplicationSpec{
		Name:     "App",
		AppClass: "co.cask.WordCountApp",
		Programs: []platform.ProgramSpec{
			{Type: entity.Flow, Name: "WordCounter"},
			{Type: entity.Service, Name: "RetrieveCounts"},
		},
	}
	require.NoError(t, w.WriteApplication(ctx, app, spec))

	props, err := store.GetProperties(ctx, app, metadata.System)
	require.NoError(t, err)
	assert.Len(t, props, 2)

	tags, err := store.GetTags(ctx, app.Program(entity.Service, "RetrieveCounts"), metadata.System)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"RetrieveCounts", "Service", "Realtime"}, tags)

	spec.Programs = spec.Programs[1:]
	require.NoError(t, w.WriteApplication(ctx, app, spec))

	props, err = store.GetProperties(ctx, app, metadata.System)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Service:RetrieveCounts": "RetrieveCounts"}, props)

	ids, err := store.FindEntities(ctx, "default", "flow:", true)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestWriteStreamIsSearchable(t *testing.T) {
	w, store := setupWriter(t)
	ctx := context.Background()
	stream := entity.Stream{Namespace: "default", Name: "text"}

	require.NoError(t, w.WriteStream(ctx, stream, platform.StreamSpec{Name: "text"}))

	for _, term := range []string{"body", "body:string", "schema:body:string", "text"} {
		ids, err := store.FindEntities(ctx, "default", term, false)
		require.NoError(t, err)
		assert.Equal(t, []entity.ID{stream}, ids, term)
	}
	ids, err := store.FindEntities(ctx, "default", "ttl:", true)
	require.NoError(t, err)
	assert.Equal(t, []entity.ID{stream}, ids)

	user, err := store.GetTags(ctx, stream, metadata.User)
	require.NoError(t, err)
	assert.Empty(t, user)
}
