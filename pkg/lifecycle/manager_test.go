// ABOUTME: Tests for entity lifecycle events and metadata cascades
// ABOUTME: Runs against the memory registry and an in-memory metadata store

package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/metacatalog/pkg/entity"
	"github.com/nainya/metacatalog/pkg/metadata"
	"github.com/nainya/metacatalog/pkg/platform"
	"github.com/nainya/metacatalog/pkg/storage/memkv"
	"github.com/nainya/metacatalog/pkg/system"
)

type countingObserver map[string]int

func (c countingObserver) ObserveLifecycle(kind entity.Kind, action string) {
	c[kind.String()+"/"+action]++
}

func setupManager(t *testing.T) (*Manager, *metadata.Store, countingObserver) {
	kv := memkv.New()
	t.Cleanup(func() { _ = kv.Close() })
	store := metadata.NewStore(kv)
	obs := countingObserver{}
	m := NewManager(platform.NewMemoryRegistry(), store, system.NewWriter(store, zerolog.Nop()), WithObserver(obs))
	require.NoError(t, m.Init(context.Background()))
	return m, store, obs
}

func wordCount() platform.ApplicationSpec {
	return platform.ApplicationSpec{
		Name:     "WordCountApp",
		AppClass: "co.cask.WordCountApp",
		Programs: []platform.ProgramSpec{
			{Type: entity.Flow, Name: "WordCounter"},
			{Type: entity.Service, Name: "RetrieveCounts"},
		},
		Streams:  []platform.StreamSpec{{Name: "text"}},
		Datasets: []platform.DatasetSpec{{Name: "wordStats", Type: "co.cask.KeyValueTable", Batch: true}},
	}
}

func exists(t *testing.T, m *Manager, id entity.ID) bool {
	t.Helper()
	ok, err := m.Exists(context.Background(), id)
	require.NoError(t, err)
	return ok
}

func TestNamespaces(t *testing.T) {
	m, _, _ := setupManager(t)
	ctx := context.Background()

	ok, err := m.HasNamespace(ctx, entity.SystemNamespace)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.CreateNamespace(ctx, "testnamespace1"))
	names, err := m.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "system", "testnamespace1"}, names)

	assert.True(t, metadata.ErrBadRequest.Has(m.CreateNamespace(ctx, "")))
	assert.True(t, metadata.ErrBadRequest.Has(m.DeleteNamespace(ctx, entity.SystemNamespace)))
	assert.True(t, metadata.ErrNotFound.Has(m.DeleteNamespace(ctx, "missing")))
}

func TestDeployApplication(t *testing.T) {
	m, store, obs := setupManager(t)
	ctx := context.Background()

	app, err := m.DeployApplication(ctx, "default", wordCount())
	require.NoError(t, err)

	flow := app.Program(entity.Flow, "WordCounter")
	assert.True(t, exists(t, m, app))
	assert.True(t, exists(t, m, flow))
	assert.True(t, exists(t, m, entity.Stream{Namespace: "default", Name: "text"}))
	assert.True(t, exists(t, m, entity.Dataset{Namespace: "default", Name: "wordStats"}))
	assert.False(t, exists(t, m, app.Program(entity.Spark, "WordCounter")))

	tags, err := store.GetTags(ctx, app, metadata.System)
	require.NoError(t, err)
	assert.Equal(t, []string{"WordCountApp"}, tags)

	tags, err = store.GetTags(ctx, flow, metadata.System)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"WordCounter", "Flow", "Realtime"}, tags)
	assert.Equal(t, 1, obs["application/deployed"])

	_, err = m.DeployApplication(ctx, "missing", wordCount())
	assert.True(t, metadata.ErrNotFound.Has(err))

	dup := wordCount()
	dup.Programs = append(dup.Programs, dup.Programs[0])
	_, err = m.DeployApplication(ctx, "default", dup)
	assert.True(t, metadata.ErrBadRequest.Has(err))
}

func TestRedeployRemovesDroppedPrograms(t *testing.T) {
	m, store, obs := setupManager(t)
	ctx := context.Background()

	app, err := m.DeployApplication(ctx, "default", wordCount())
	require.NoError(t, err)
	flow := app.Program(entity.Flow, "WordCounter")
	require.NoError(t, store.AddProperties(ctx, flow, metadata.User, map[string]string{"aKey": "aValue"}))

	spec := wordCount()
	spec.Programs = spec.Programs[1:]
	_, err = m.DeployApplication(ctx, "default", spec)
	require.NoError(t, err)

	assert.False(t, exists(t, m, flow))
	props, err := store.GetProperties(ctx, flow, metadata.User)
	require.NoError(t, err)
	assert.Empty(t, props)

	ids, err := store.FindEntities(ctx, "default", "avalue", false)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, 1, obs["application/redeployed"])
	assert.Equal(t, 1, obs["program/deleted"])
}

func TestDeleteApplicationCascades(t *testing.T) {
	m, store, _ := setupManager(t)
	ctx := context.Background()

	app, err := m.DeployApplication(ctx, "default", wordCount())
	require.NoError(t, err)
	flow := app.Program(entity.Flow, "WordCounter")
	require.NoError(t, store.AddProperties(ctx, flow, metadata.User, map[string]string{"aKey": "aValue"}))

	require.NoError(t, m.DeleteApplication(ctx, app))
	assert.False(t, exists(t, m, app))
	assert.False(t, exists(t, m, flow))
	assert.True(t, exists(t, m, entity.Stream{Namespace: "default", Name: "text"}))

	ids, err := store.FindEntities(ctx, "default", "wordcounter", false)
	require.NoError(t, err)
	assert.Empty(t, ids)

	assert.True(t, metadata.ErrNotFound.Has(m.DeleteApplication(ctx, app)))
}

func TestStreamsAndViews(t *testing.T) {
	m, store, _ := setupManager(t)
	ctx := context.Background()

	stream := entity.Stream{Namespace: "default", Name: "text"}
	view := stream.View("view")

	assert.True(t, metadata.ErrNotFound.Has(m.CreateView(ctx, view, platform.ViewSpec{})))
	require.NoError(t, m.CreateStream(ctx, stream, platform.StreamSpec{}))
	require.NoError(t, m.CreateView(ctx, view, platform.ViewSpec{Schema: `{"type":"record","name":"r","fields":[{"name":"viewBody","type":"bytes"}]}`}))
	assert.True(t, metadata.ErrBadRequest.Has(m.CreateView(ctx, stream.View("bad"), platform.ViewSpec{Schema: "{"})))

	require.NoError(t, m.UpdateStreamProperties(ctx, stream, 1000, ""))
	props, err := store.GetProperties(ctx, stream, metadata.System)
	require.NoError(t, err)
	assert.Equal(t, "1000", props["ttl"])
	assert.Contains(t, props["schema"], "stringBody")

	assert.True(t, metadata.ErrNotFound.Has(m.UpdateStreamProperties(ctx, entity.Stream{Namespace: "default", Name: "nope"}, 1, "")))
	assert.True(t, metadata.ErrBadRequest.Has(m.UpdateStreamProperties(ctx, stream, -1, "")))

	require.NoError(t, m.DeleteStream(ctx, stream))
	assert.False(t, exists(t, m, view))
	tags, err := store.GetTags(ctx, view, metadata.System)
	require.NoError(t, err)
	assert.Empty(t, tags)
}

func TestDatasetsAndArtifacts(t *testing.T) {
	m, store, _ := setupManager(t)
	ctx := context.Background()

	ds := entity.Dataset{Namespace: "default", Name: "myds"}
	require.NoError(t, m.CreateDataset(ctx, ds, platform.DatasetSpec{Type: "table", Explore: true}))
	tags, err := store.GetTags(ctx, ds, metadata.System)
	require.NoError(t, err)
	assert.Equal(t, []string{"explore", "myds"}, tags)
	require.NoError(t, m.DeleteDataset(ctx, ds))
	assert.True(t, metadata.ErrNotFound.Has(m.DeleteDataset(ctx, ds)))

	artifact := entity.Artifact{Namespace: entity.SystemNamespace, Name: "wordcount", Version: "1.0.0"}
	require.NoError(t, m.AddArtifact(ctx, artifact, platform.ArtifactSpec{}))
	assert.True(t, exists(t, m, artifact))
	tags, err = store.GetTags(ctx, artifact, metadata.System)
	require.NoError(t, err)
	assert.Equal(t, []string{"wordcount"}, tags)

	assert.True(t, metadata.ErrBadRequest.Has(m.AddArtifact(ctx, entity.Artifact{Namespace: "default", Name: "a"}, platform.ArtifactSpec{})))
	require.NoError(t, m.DeleteArtifact(ctx, artifact))
	assert.False(t, exists(t, m, artifact))
}

func TestDeleteNamespaceCascades(t *testing.T) {
	m, store, _ := setupManager(t)
	ctx := context.Background()

	require.NoError(t, m.CreateNamespace(ctx, "ns1"))
	app, err := m.DeployApplication(ctx, "ns1", wordCount())
	require.NoError(t, err)
	require.NoError(t, store.AddTags(ctx, app, metadata.User, "mine"))

	require.NoError(t, m.DeleteNamespace(ctx, "ns1"))
	assert.False(t, exists(t, m, app))

	ids, err := store.FindEntities(ctx, "ns1", "", true)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDeleteWaitsForEntityWrites(t *testing.T) {
	m, store, _ := setupManager(t)
	ctx := context.Background()
	app, err := m.DeployApplication(ctx, "default", wordCount())
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	written := make(chan error, 1)
	go func() {
		written <- m.WithEntity(ctx, app, func() error {
			close(entered)
			<-release
			return store.AddProperties(ctx, app, metadata.User, map[string]string{"orphan": "ghost"})
		})
	}()
	<-entered

	deleted := make(chan error, 1)
	go func() { deleted <- m.DeleteApplication(ctx, app) }()

	select {
	case err := <-deleted:
		t.Fatalf("delete finished while a write was in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-written)
	require.NoError(t, <-deleted)

	ids, err := store.FindEntities(ctx, "default", "ghost", false)
	require.NoError(t, err)
	assert.Empty(t, ids)

	err = m.WithEntity(ctx, app, func() error {
		t.Fatal("write ran against a deleted entity")
		return nil
	})
	assert.True(t, metadata.ErrNotFound.Has(err))

	_, err = m.DeployApplication(ctx, "default", wordCount())
	require.NoError(t, err)
	props, err := store.GetProperties(ctx, app, metadata.User)
	require.NoError(t, err)
	assert.Empty(t, props)
}

func TestDeleteNamespaceWaitsForEntityWrites(t *testing.T) {
	m, store, _ := setupManager(t)
	ctx := context.Background()
	require.NoError(t, m.CreateNamespace(ctx, "ns1"))
	app, err := m.DeployApplication(ctx, "ns1", wordCount())
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	written := make(chan error, 1)
	go func() {
		written <- m.WithEntity(ctx, app, func() error {
			close(entered)
			<-release
			return store.AddTags(ctx, app, metadata.User, "late")
		})
	}()
	<-entered

	deleted := make(chan error, 1)
	go func() { deleted <- m.DeleteNamespace(ctx, "ns1") }()
	select {
	case err := <-deleted:
		t.Fatalf("namespace delete finished while a write was in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-written)
	require.NoError(t, <-deleted)

	ids, err := store.FindEntities(ctx, "ns1", "", true)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
