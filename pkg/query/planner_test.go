// ABOUTME: Tests for the search planner over an in-memory metadata store
// ABOUTME: Exercises conjunction, target filters and system namespace visibility

package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/metacatalog/pkg/entity"
	"github.com/nainya/metacatalog/pkg/metadata"
	"github.com/nainya/metacatalog/pkg/storage/memkv"
)

var (
	app     = entity.Application{Namespace: "default", Name: "WordCount"}
	stream  = entity.Stream{Namespace: "default", Name: "text"}
	service = app.Program(entity.Service, "WordFrequency")
)

func setupPlanner(t *testing.T) (*Planner, *metadata.Store) {
	kv := memkv.New()
	t.Cleanup(func() { _ = kv.Close() })
	store := metadata.NewStore(kv)
	return NewPlanner(store), store
}

func search(t *testing.T, p *Planner, ns, q string, target Target) []entity.ID {
	t.Helper()
	terms, err := Parse(q)
	require.NoError(t, err)
	ids, err := p.Search(context.Background(), ns, terms, target)
	require.NoError(t, err)
	return ids
}

func TestSearchTokenizedValues(t *testing.T) {
	p, store := setupPlanner(t)
	ctx := context.Background()

	value := "wow1 WoW2   -    WOW3 - wow4_woW5 wow6"
	require.NoError(t, store.AddProperties(ctx, app, metadata.User, map[string]string{"multiword": value}))
	require.NoError(t, store.AddProperties(ctx, stream, metadata.User, map[string]string{"multiword": value}))

	assert.Equal(t, []entity.ID{app}, search(t, p, "default", "multiword:wow1", TargetApp))
	assert.Equal(t, []entity.ID{app}, search(t, p, "default", "multiword:woW5", TargetApp))
	assert.Equal(t, []entity.ID{app}, search(t, p, "default", "WOW3", TargetApp))
	assert.ElementsMatch(t, []entity.ID{app, stream}, search(t, p, "default", "wo*", TargetAll))
	assert.ElementsMatch(t, []entity.ID{app, stream}, search(t, p, "default", "multiword:*", TargetAll))
	assert.Equal(t, []entity.ID{stream}, search(t, p, "default", "wow2", TargetStream))
}

func TestSearchKeyedPrefixVersusLiteral(t *testing.T) {
	p, store := setupPlanner(t)
	ctx := context.Background()

	require.NoError(t, store.AddProperties(ctx, service, metadata.User, map[string]string{"sKey": "sValue", "sK": "sV"}))

	assert.Equal(t, []entity.ID{entity.ID(service)}, search(t, p, "default", "sKey:s*", TargetAll))
	assert.Empty(t, search(t, p, "default", "sKey:s", TargetAll))
	assert.Empty(t, search(t, p, "default", "s", TargetAll))
	assert.Equal(t, []entity.ID{entity.ID(service)}, search(t, p, "default", "SKEY:SVALUE", TargetProgram))
}

func TestSearchConjunction(t *testing.T) {
	p, store := setupPlanner(t)
	ctx := context.Background()

	require.NoError(t, store.AddProperties(ctx, app, metadata.User, map[string]string{"a": "x", "b": "y"}))
	require.NoError(t, store.AddProperties(ctx, stream, metadata.User, map[string]string{"a": "x"}))

	assert.ElementsMatch(t, []entity.ID{app, stream}, search(t, p, "default", "a:x", TargetAll))
	assert.Equal(t, []entity.ID{app}, search(t, p, "default", "a:x b:y", TargetAll))
	assert.Equal(t, []entity.ID{app}, search(t, p, "default", "a:x+b:*", TargetAll))
	assert.Empty(t, search(t, p, "default", "a:x b:nope", TargetAll))
}

func TestSearchAcrossScopesIsUnique(t *testing.T) {
	p, store := setupPlanner(t)
	ctx := context.Background()

	require.NoError(t, store.AddTags(ctx, app, metadata.User, "WordCount"))
	require.NoError(t, store.AddTags(ctx, app, metadata.System, "WordCount"))

	assert.Equal(t, []entity.ID{app}, search(t, p, "default", "wordcount", TargetAll))
}

func TestSearchNamespaces(t *testing.T) {
	p, store := setupPlanner(t)
	ctx := context.Background()

	other := entity.Application{Namespace: "other", Name: "WordCount"}
	plugin := entity.Artifact{Namespace: entity.SystemNamespace, Name: "wordcount", Version: "1.0.0"}
	require.NoError(t, store.AddTags(ctx, app, metadata.User, "shared"))
	require.NoError(t, store.AddTags(ctx, other, metadata.User, "shared"))
	require.NoError(t, store.AddTags(ctx, plugin, metadata.System, "shared"))

	assert.ElementsMatch(t, []entity.ID{app, plugin}, search(t, p, "default", "shared", TargetAll))
	assert.ElementsMatch(t, []entity.ID{entity.ID(other), plugin}, search(t, p, "other", "shared", TargetAll))
	assert.Equal(t, []entity.ID{entity.ID(plugin)}, search(t, p, entity.SystemNamespace, "shared", TargetAll))
	assert.Equal(t, []entity.ID{entity.ID(plugin)}, search(t, p, "default", "shared", TargetArtifact))
	assert.Equal(t, []entity.ID{entity.ID(plugin)}, search(t, p, "unknown", "shared", TargetAll))
}

type failingFinder struct{}

func (failingFinder) FindEntities(context.Context, string, string, bool) ([]entity.ID, error) {
	return nil, errors.New("index unavailable")
}

func TestSearchPropagatesErrors(t *testing.T) {
	p := NewPlanner(failingFinder{})
	_, err := p.Search(context.Background(), "default", []Term{{Pattern: "x"}}, TargetAll)
	assert.Error(t, err)
}
