// Package registrytest holds conformance tests every platform.Registry must pass.
package registrytest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/metacatalog/pkg/entity"
	"github.com/nainya/metacatalog/pkg/platform"
)

// RunTests runs common platform.Registry tests against an empty registry.
func RunTests(t *testing.T, r platform.Registry) {
	t.Run("Namespaces", func(t *testing.T) { testNamespaces(t, r) })
	t.Run("Definitions", func(t *testing.T) { testDefinitions(t, r) })
	t.Run("List", func(t *testing.T) { testList(t, r) })
	t.Run("Specs", func(t *testing.T) { testSpecs(t, r) })
	t.Run("NamespaceCascade", func(t *testing.T) { testNamespaceCascade(t, r) })
}

func testNamespaces(t *testing.T, r platform.Registry) {
	ctx := context.Background()

	ok, err := r.HasNamespace(ctx, "ns1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.CreateNamespace(ctx, "ns1"))
	require.NoError(t, r.CreateNamespace(ctx, "ns1"))
	require.NoError(t, r.CreateNamespace(ctx, "ns0"))
	assert.Error(t, r.CreateNamespace(ctx, ""))

	ok, err = r.HasNamespace(ctx, "ns1")
	require.NoError(t, err)
	assert.True(t, ok)

	names, err := r.Namespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ns0", "ns1"}, names)

	require.NoError(t, r.DeleteNamespace(ctx, "ns0"))
	require.NoError(t, r.DeleteNamespace(ctx, "ns1"))
	require.NoError(t, r.DeleteNamespace(ctx, "missing"))
	names, err = r.Namespaces(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func testDefinitions(t *testing.T, r platform.Registry) {
	ctx := context.Background()
	id := entity.Stream{Namespace: "defs", Name: "text"}

	_, ok, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Put(ctx, id, []byte(`{"v":1}`)))
	require.NoError(t, r.Put(ctx, id, []byte(`{"v":2}`)))

	data, ok, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"v":2}`, string(data))

	require.NoError(t, r.Delete(ctx, id))
	require.NoError(t, r.Delete(ctx, id))
	_, ok, err = r.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testList(t *testing.T, r platform.Registry) {
	ctx := context.Background()
	app := entity.Application{Namespace: "list", Name: "WordCount"}
	ids := []entity.ID{
		app,
		app.Program(entity.Workflow, "Nightly"),
		app.Program(entity.Flow, "Counter"),
		entity.Application{Namespace: "list", Name: "Alpha"},
		entity.Application{Namespace: "other", Name: "Beta"},
		entity.Artifact{Namespace: "list", Name: "wordcount", Version: "1.0.0"},
	}
	for _, id := range ids {
		require.NoError(t, r.Put(ctx, id, []byte("{}")))
	}

	apps, err := r.List(ctx, "list", entity.KindApplication)
	require.NoError(t, err)
	assert.Equal(t, []entity.ID{ids[3], ids[0]}, apps)

	programs, err := r.List(ctx, "list", entity.KindProgram)
	require.NoError(t, err)
	assert.ElementsMatch(t, []entity.ID{ids[1], ids[2]}, programs)

	artifacts, err := r.List(ctx, "list", entity.KindArtifact)
	require.NoError(t, err)
	assert.Equal(t, []entity.ID{ids[5]}, artifacts)

	none, err := r.List(ctx, "list", entity.KindView)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testSpecs(t *testing.T, r platform.Registry) {
	ctx := context.Background()
	id := entity.Application{Namespace: "specs", Name: "WordCount"}
	spec := platform.ApplicationSpec{
		Name:     "WordCount",
		AppClass: "co.cask.WordCountApp",
		Programs: []platform.ProgramSpec{
			{Type: entity.Workflow, Name: "Nightly", Nodes: []string{"Clean", "Count"}},
		},
	}
	require.NoError(t, platform.PutSpec(ctx, r, id, spec))

	var got platform.ApplicationSpec
	ok, err := platform.GetSpec(ctx, r, id, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, spec, got)

	ok, err = platform.GetSpec(ctx, r, entity.Application{Namespace: "specs", Name: "missing"}, &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testNamespaceCascade(t *testing.T, r platform.Registry) {
	ctx := context.Background()
	keep := entity.Dataset{Namespace: "keep", Name: "ds"}
	drop := entity.Dataset{Namespace: "drop", Name: "ds"}

	require.NoError(t, r.CreateNamespace(ctx, "keep"))
	require.NoError(t, r.CreateNamespace(ctx, "drop"))
	require.NoError(t, r.Put(ctx, keep, []byte("{}")))
	require.NoError(t, r.Put(ctx, drop, []byte("{}")))

	require.NoError(t, r.DeleteNamespace(ctx, "drop"))

	_, ok, err := r.Get(ctx, drop)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = r.Get(ctx, keep)
	require.NoError(t, err)
	assert.True(t, ok)
}
