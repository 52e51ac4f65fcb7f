// ABOUTME: Tests for the catalog service surface
// ABOUTME: Covers existence checks, scope rules, unions and search

package catalog

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/metacatalog/pkg/entity"
	"github.com/nainya/metacatalog/pkg/lifecycle"
	"github.com/nainya/metacatalog/pkg/metadata"
	"github.com/nainya/metacatalog/pkg/platform"
	"github.com/nainya/metacatalog/pkg/storage/memkv"
	"github.com/nainya/metacatalog/pkg/system"
)

type searchLog struct {
	targets []string
	results []int
}

func (l *searchLog) ObserveSearch(target string, results int, _ time.Duration, _ error) {
	l.targets = append(l.targets, target)
	l.results = append(l.results, results)
}

func setupService(t *testing.T, opts ...Option) (*Service, *lifecycle.Manager) {
	kv := memkv.New()
	t.Cleanup(func() { _ = kv.Close() })
	store := metadata.NewStore(kv)
	m := lifecycle.NewManager(platform.NewMemoryRegistry(), store, system.NewWriter(store, zerolog.Nop()))
	require.NoError(t, m.Init(context.Background()))
	return New(store, m, opts...), m
}

func deployWordCount(t *testing.T, m *lifecycle.Manager, ns string) entity.Application {
	app, err := m.DeployApplication(context.Background(), ns, platform.ApplicationSpec{
		Name:     "WordCountApp",
		Programs: []platform.ProgramSpec{{Type: entity.Flow, Name: "WordCounter"}},
	})
	require.NoError(t, err)
	return app
}

func TestUnknownEntitiesAreNotFound(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()
	missing := entity.Application{Namespace: "default", Name: "nope"}

	assert.True(t, metadata.ErrNotFound.Has(svc.AddProperties(ctx, missing, metadata.User, map[string]string{"k": "v"})))
	assert.True(t, metadata.ErrNotFound.Has(svc.AddTags(ctx, missing, metadata.User, "t")))
	assert.True(t, metadata.ErrNotFound.Has(svc.RemoveMetadata(ctx, missing, metadata.User)))
	_, err := svc.GetProperties(ctx, missing)
	assert.True(t, metadata.ErrNotFound.Has(err))
	_, err = svc.GetMetadata(ctx, entity.Application{Namespace: "nons", Name: "nope"})
	assert.True(t, metadata.ErrNotFound.Has(err))
}

func TestSystemScopeIsReadOnly(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	app := deployWordCount(t, m, "default")

	assert.True(t, metadata.ErrBadRequest.Has(svc.AddProperties(ctx, app, metadata.System, map[string]string{"k": "v"})))
	assert.True(t, metadata.ErrBadRequest.Has(svc.AddTags(ctx, app, metadata.System, "t")))
	assert.True(t, metadata.ErrBadRequest.Has(svc.RemoveTags(ctx, app, metadata.System)))
	assert.True(t, metadata.ErrBadRequest.Has(svc.RemoveProperties(ctx, app, metadata.System)))
	assert.True(t, metadata.ErrBadRequest.Has(svc.RemoveMetadata(ctx, app, metadata.System)))

	tags, err := svc.GetTags(ctx, app, metadata.System)
	require.NoError(t, err)
	assert.Equal(t, []string{"WordCountApp"}, tags)
}

func TestSystemArtifactMetadata(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	artifact := entity.Artifact{Namespace: entity.SystemNamespace, Name: "wordcount", Version: "1.0.0"}
	require.NoError(t, m.AddArtifact(ctx, artifact, platform.ArtifactSpec{}))

	require.NoError(t, svc.AddProperties(ctx, artifact, metadata.User, map[string]string{"systemArtifactKey": "systemArtifactValue"}))
	require.NoError(t, svc.AddTags(ctx, artifact, metadata.User, "systemArtifactTag"))

	records, err := svc.GetMetadata(ctx, artifact)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, map[string]string{"systemArtifactKey": "systemArtifactValue"}, records[0].Properties)
	assert.Equal(t, []string{"systemArtifactTag"}, records[0].Tags)
	assert.Empty(t, records[1].Properties)
	assert.Equal(t, []string{"wordcount"}, records[1].Tags)

	for _, target := range []string{"", "artifact"} {
		results, err := svc.Search(ctx, "default", "system*", target)
		require.NoError(t, err)
		assert.Equal(t, []SearchResult{{EntityID: artifact}}, results)
	}

	require.NoError(t, svc.RemoveMetadata(ctx, artifact, metadata.User))
	records, err = svc.GetMetadata(ctx, artifact)
	require.NoError(t, err)
	assert.True(t, records[0].Empty())
	assert.Equal(t, []string{"wordcount"}, records[1].Tags)

	results, err := svc.Search(ctx, "default", "system*", "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUnionUserWins(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	stream := entity.Stream{Namespace: "default", Name: "text"}
	require.NoError(t, m.CreateStream(ctx, stream, platform.StreamSpec{TTL: 5}))

	require.NoError(t, svc.AddProperties(ctx, stream, metadata.User, map[string]string{"ttl": "user", "owner": "me"}))
	require.NoError(t, svc.AddTags(ctx, stream, metadata.User, "text", "mine"))

	props, err := svc.GetProperties(ctx, stream)
	require.NoError(t, err)
	assert.Equal(t, "user", props["ttl"])
	assert.Equal(t, "me", props["owner"])
	assert.Contains(t, props, "schema")

	tags, err := svc.GetTags(ctx, stream)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"mine", "text"}, tags)
}

// racingEntities deletes the application concurrently with every write it
// admits.
type racingEntities struct {
	*lifecycle.Manager
	deletes chan error
}

func (r *racingEntities) WithEntity(ctx context.Context, id entity.ID, fn func() error) error {
	return r.Manager.WithEntity(ctx, id, func() error {
		app := id.(entity.Application)
		go func() { r.deletes <- r.Manager.DeleteApplication(ctx, app) }()
		return fn()
	})
}

func TestWriteRacingDeleteLeavesNoMetadata(t *testing.T) {
	kv := memkv.New()
	t.Cleanup(func() { _ = kv.Close() })
	store := metadata.NewStore(kv)
	m := lifecycle.NewManager(platform.NewMemoryRegistry(), store, system.NewWriter(store, zerolog.Nop()))
	ctx := context.Background()
	require.NoError(t, m.Init(ctx))

	entities := &racingEntities{Manager: m, deletes: make(chan error, 1)}
	svc := New(store, entities)
	app := deployWordCount(t, m, "default")

	require.NoError(t, svc.AddProperties(ctx, app, metadata.User, map[string]string{"orphan": "ghost"}))
	require.NoError(t, <-entities.deletes)

	results, err := svc.Search(ctx, "default", "ghost", "")
	require.NoError(t, err)
	assert.Empty(t, results)

	redeployed := deployWordCount(t, m, "default")
	props, err := svc.GetProperties(ctx, redeployed, metadata.User)
	require.NoError(t, err)
	assert.Empty(t, props)
}

func TestProgramNotFoundAfterAppDelete(t *testing.T) {
	svc, m := setupService(t)
	ctx := context.Background()
	app := deployWordCount(t, m, "default")
	flow := app.Program(entity.Flow, "WordCounter")

	require.NoError(t, svc.AddProperties(ctx, flow, metadata.User, map[string]string{"aKey": "aValue", "aK": "aV"}))
	props, err := svc.GetProperties(ctx, flow, metadata.User)
	require.NoError(t, err)
	assert.Len(t, props, 2)

	require.NoError(t, m.DeleteApplication(ctx, app))
	_, err = svc.GetProperties(ctx, flow, metadata.User)
	assert.True(t, metadata.ErrNotFound.Has(err))
}

func TestSearch(t *testing.T) {
	obs := &searchLog{}
	svc, m := setupService(t, WithSearchObserver(obs))
	ctx := context.Background()
	app := deployWordCount(t, m, "default")

	results, err := svc.Search(ctx, "default", "Flow:*", "APP")
	require.NoError(t, err)
	assert.Equal(t, []SearchResult{{EntityID: app}}, results)

	results, err = svc.Search(ctx, "default", "realtime", "program")
	require.NoError(t, err)
	assert.Equal(t, []SearchResult{{EntityID: app.Program(entity.Flow, "WordCounter")}}, results)

	results, err = svc.Search(ctx, "unknown", "realtime", "")
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = svc.Search(ctx, "default", "*", "")
	assert.True(t, metadata.ErrBadRequest.Has(err))
	_, err = svc.Search(ctx, "default", "x", "table")
	assert.True(t, metadata.ErrBadRequest.Has(err))

	assert.Equal(t, []string{"APP", "PROGRAM", "ALL", "ALL"}, obs.targets)
	assert.Equal(t, []int{1, 1, 0, 0}, obs.results)
}

func TestSearchResultJSON(t *testing.T) {
	data, err := json.Marshal(SearchResult{EntityID: entity.Dataset{Namespace: "default", Name: "ds"}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `{"entityId":{`))
	assert.Contains(t, string(data), `"dataset":"ds"`)
}
