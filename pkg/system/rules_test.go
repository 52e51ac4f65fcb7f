package system

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nainya/metacatalog/pkg/entity"
	"github.com/nainya/metacatalog/pkg/platform"
	"github.com/nainya/metacatalog/pkg/schema"
)

var app = entity.Application{Namespace: "default", Name: "App"}

func TestForStream(t *testing.T) {
	id := entity.Stream{Namespace: "default", Name: "text"}

	m := ForStream(id, platform.StreamSpec{Name: "text"})
	assert.Equal(t, []string{"text"}, m.Tags)
	assert.Equal(t, map[string]string{
		"schema": `{"type":"record","name":"stringBody","fields":[{"name":"body","type":"string"}]}`,
		"ttl":    strconv.FormatInt(platform.DefaultStreamTTL, 10),
	}, m.Properties)

	custom := schema.RecordOf("event", schema.NewField("id", schema.Of(schema.Long)))
	m = ForStream(id, platform.StreamSpec{Name: "text", Schema: custom.String(), TTL: 3600000})
	assert.Equal(t, custom.String(), m.Properties["schema"])
	assert.Equal(t, "3600000", m.Properties["ttl"])
}

func TestForView(t *testing.T) {
	view := entity.Stream{Namespace: "default", Name: "text"}.View("view")
	s := schema.RecordOf("record", schema.NewField("viewBody", schema.NullableOf(schema.Of(schema.Bytes))))

	m := ForView(view, platform.ViewSpec{Name: "view", Format: "format", Schema: s.String()})
	assert.Equal(t, []string{"text", "view"}, m.Tags)
	assert.Equal(t, map[string]string{"schema": s.String()}, m.Properties)
}

func TestForDataset(t *testing.T) {
	id := entity.Dataset{Namespace: "default", Name: "kvt"}

	m := ForDataset(id, platform.DatasetSpec{Name: "kvt", Type: "co.cask.KeyValueTable", Batch: true, Explore: true})
	assert.Equal(t, []string{"batch", "explore", "kvt"}, m.Tags)
	assert.Equal(t, map[string]string{"type": "co.cask.KeyValueTable"}, m.Properties)

	m = ForDataset(id, platform.DatasetSpec{Name: "kvt", Type: "table", Schema: "not a schema"})
	assert.Equal(t, []string{"kvt"}, m.Tags)
	assert.Equal(t, "not a schema", m.Properties["schema"])
}

func TestForArtifact(t *testing.T) {
	id := entity.Artifact{Namespace: "default", Name: "plugins", Version: "1.0.0"}

	m := ForArtifact(id, platform.ArtifactSpec{
		Name:       "plugins",
		Version:    "1.0.0",
		AppClasses: []string{"co.cask.AllProgramsApp"},
		Plugins:    []platform.PluginSpec{{Name: "mytransform", Type: "transform"}},
	})
	assert.Equal(t, []string{"AllProgramsApp", "plugins"}, m.Tags)
	assert.Equal(t, map[string]string{"plugin:mytransform:transform": "mytransform:transform"}, m.Properties)

	system := entity.Artifact{Namespace: entity.SystemNamespace, Name: "wordcount", Version: "1.0.0"}
	m = ForArtifact(system, platform.ArtifactSpec{Name: "wordcount", Version: "1.0.0"})
	assert.Equal(t, []string{"wordcount"}, m.Tags)
	assert.Empty(t, m.Properties)
}

func TestForApplication(t *testing.T) {
	m := ForApplication(app, platform.ApplicationSpec{
		Name:     "App",
		AppClass: "co.cask.AllProgramsApp",
		Programs: []platform.ProgramSpec{
			{Type: entity.Flow, Name: "NoOpFlow"},
			{Type: entity.MapReduce, Name: "NoOpMR"},
			{Type: entity.Workflow, Name: "NoOpWorkflow"},
		},
		Schedules: []platform.ScheduleSpec{{Name: "sched", Description: "EveryMinute"}},
	})

	assert.Equal(t, []string{"AllProgramsApp", "App"}, m.Tags)
	assert.Equal(t, map[string]string{
		"Flow:NoOpFlow":         "NoOpFlow",
		"MapReduce:NoOpMR":      "NoOpMR",
		"Workflow:NoOpWorkflow": "NoOpWorkflow",
		"schedule:sched":        "sched:EveryMinute",
	}, m.Properties)
}

func TestForProgram(t *testing.T) {
	tests := []struct {
		typ  entity.ProgramType
		mode string
	}{
		{entity.Flow, "Realtime"},
		{entity.Service, "Realtime"},
		{entity.Worker, "Realtime"},
		{entity.MapReduce, "Batch"},
		{entity.Spark, "Batch"},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			m := ForProgram(app.Program(tt.typ, "prog"), platform.ProgramSpec{Type: tt.typ, Name: "prog", Nodes: []string{"ignored"}})
			assert.ElementsMatch(t, []string{"prog", tt.typ.PrettyName(), tt.mode}, m.Tags)
			assert.Empty(t, m.Properties)
		})
	}

	m := ForProgram(app.Program(entity.Workflow, "wf"), platform.ProgramSpec{
		Type: entity.Workflow, Name: "wf", Nodes: []string{"NoOpMR", "NoOpSpark"},
	})
	assert.ElementsMatch(t, []string{"wf", "Workflow", "Batch", "NoOpMR", "NoOpSpark"}, m.Tags)
}
