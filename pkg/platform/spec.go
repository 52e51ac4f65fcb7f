// ABOUTME: Definitions of the platform entities metadata is attached to
// ABOUTME: Specs are what the lifecycle manager registers and system metadata is derived from

package platform

import (
	"math"

	"github.com/nainya/metacatalog/pkg/entity"
)

// DefaultStreamTTL is the ttl of a stream created without one.
const DefaultStreamTTL int64 = math.MaxInt64

// ApplicationSpec describes a deployed application.
type ApplicationSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	AppClass    string         `json:"appClass,omitempty"`
	Artifact    *ArtifactRef   `json:"artifact,omitempty"`
	Programs    []ProgramSpec  `json:"programs,omitempty"`
	Schedules   []ScheduleSpec `json:"schedules,omitempty"`
	Streams     []StreamSpec   `json:"streams,omitempty"`
	Datasets    []DatasetSpec  `json:"datasets,omitempty"`
}

// ArtifactRef names the artifact an application was built from.
type ArtifactRef struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ProgramSpec describes one program of an application. Nodes lists the
// inner node names of a workflow.
type ProgramSpec struct {
	Type        entity.ProgramType `json:"type"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Nodes       []string           `json:"nodes,omitempty"`
}

type ScheduleSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Program     string `json:"program,omitempty"`
}

// StreamSpec describes a stream. TTL is in milliseconds; zero means
// DefaultStreamTTL. An empty Schema means the default body schema.
type StreamSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Schema      string `json:"schema,omitempty"`
	TTL         int64  `json:"ttl,omitempty"`
}

// ViewSpec describes a view over a stream.
type ViewSpec struct {
	Name   string `json:"name"`
	Format string `json:"format,omitempty"`
	Schema string `json:"schema"`
}

// DatasetSpec describes a dataset instance. Type is the implementation
// class name.
type DatasetSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Schema      string `json:"schema,omitempty"`
	Batch       bool   `json:"batch,omitempty"`
	Explore     bool   `json:"explore,omitempty"`
}

// ArtifactSpec describes a versioned artifact with the application classes
// and plugins it contains.
type ArtifactSpec struct {
	Name       string       `json:"name"`
	Version    string       `json:"version"`
	AppClasses []string     `json:"appClasses,omitempty"`
	Plugins    []PluginSpec `json:"plugins,omitempty"`
}

type PluginSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	ClassName   string `json:"className,omitempty"`
	Description string `json:"description,omitempty"`
}

// SimpleClassName strips the package qualifier of a class name.
func SimpleClassName(className string) string {
	for i := len(className) - 1; i >= 0; i-- {
		switch className[i] {
		case '.', '$':
			return className[i+1:]
		}
	}
	return className
}
