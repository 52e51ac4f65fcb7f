// ABOUTME: Per-kind rules deriving system tags and properties from entity specs
// ABOUTME: Rules are pure; the writer stores their output in the system scope

package system

import (
	"sort"
	"strconv"

	"github.com/nainya/metacatalog/pkg/entity"
	"github.com/nainya/metacatalog/pkg/index"
	"github.com/nainya/metacatalog/pkg/platform"
	"github.com/nainya/metacatalog/pkg/schema"
)

const (
	BatchTag   = "batch"
	ExploreTag = "explore"

	TTLKey      = "ttl"
	TypeKey     = "type"
	ScheduleKey = "schedule"
	PluginKey   = "plugin"
)

// Metadata is the system record derived for one entity.
type Metadata struct {
	Properties map[string]string
	Tags       []string
}

// DefaultStreamSchema is the schema of a stream that declares none.
var DefaultStreamSchema = schema.RecordOf("stringBody", schema.NewField("body", schema.Of(schema.String)))

func newMetadata() Metadata {
	return Metadata{Properties: make(map[string]string)}
}

func (m *Metadata) tag(tags ...string) {
	for _, t := range tags {
		if t != "" {
			m.Tags = append(m.Tags, t)
		}
	}
}

func (m *Metadata) finish() Metadata {
	seen := make(map[string]struct{}, len(m.Tags))
	tags := m.Tags[:0]
	for _, t := range m.Tags {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			tags = append(tags, t)
		}
	}
	sort.Strings(tags)
	m.Tags = tags
	return *m
}

// canonicalSchema prints text in canonical form when it parses.
func canonicalSchema(text string) string {
	s, err := schema.Parse(text)
	if err != nil {
		return text
	}
	return s.String()
}

func ForStream(id entity.Stream, spec platform.StreamSpec) Metadata {
	m := newMetadata()
	m.tag(id.Name)

	m.Properties[index.SchemaKey] = DefaultStreamSchema.String()
	if spec.Schema != "" {
		m.Properties[index.SchemaKey] = canonicalSchema(spec.Schema)
	}
	ttl := spec.TTL
	if ttl <= 0 {
		ttl = platform.DefaultStreamTTL
	}
	m.Properties[TTLKey] = strconv.FormatInt(ttl, 10)
	return m.finish()
}

func ForView(id entity.View, spec platform.ViewSpec) Metadata {
	m := newMetadata()
	m.tag(id.Name, id.Stream.Name)
	if spec.Schema != "" {
		m.Properties[index.SchemaKey] = canonicalSchema(spec.Schema)
	}
	return m.finish()
}

func ForDataset(id entity.Dataset, spec platform.DatasetSpec) Metadata {
	m := newMetadata()
	m.tag(id.Name)
	if spec.Batch {
		m.tag(BatchTag)
	}
	if spec.Explore {
		m.tag(ExploreTag)
	}
	if spec.Type != "" {
		m.Properties[TypeKey] = spec.Type
	}
	if spec.Schema != "" {
		m.Properties[index.SchemaKey] = canonicalSchema(spec.Schema)
	}
	return m.finish()
}

// ForArtifact tags an artifact with its name and the simple names of its
// application classes. Each plugin becomes a "plugin:<name>:<type>" property.
func ForArtifact(id entity.Artifact, spec platform.ArtifactSpec) Metadata {
	m := newMetadata()
	m.tag(id.Name)
	for _, class := range spec.AppClasses {
		m.tag(platform.SimpleClassName(class))
	}
	for _, p := range spec.Plugins {
		nameType := index.Keyed(p.Name, p.Type)
		m.Properties[index.Keyed(PluginKey, nameType)] = nameType
	}
	return m.finish()
}

func ForApplication(id entity.Application, spec platform.ApplicationSpec) Metadata {
	m := newMetadata()
	m.tag(id.Name)
	if spec.AppClass != "" {
		m.tag(platform.SimpleClassName(spec.AppClass))
	}
	for _, p := range spec.Programs {
		m.Properties[index.Keyed(p.Type.PrettyName(), p.Name)] = p.Name
	}
	for _, s := range spec.Schedules {
		m.Properties[index.Keyed(ScheduleKey, s.Name)] = index.Keyed(s.Name, s.Description)
	}
	return m.finish()
}

// ForProgram tags a program with its name, type and mode. Workflows are
// also tagged with their node names.
func ForProgram(id entity.Program, spec platform.ProgramSpec) Metadata {
	m := newMetadata()
	m.tag(id.Name, id.Type.PrettyName(), string(id.Type.Mode()))
	if id.Type == entity.Workflow {
		m.tag(spec.Nodes...)
	}
	return m.finish()
}
