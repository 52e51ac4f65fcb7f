// ABOUTME: Entity kinds and program types known to the platform
// ABOUTME: Program types carry the pretty name and execution mode used in system metadata

package entity

import (
	"strings"

	"github.com/zeebo/errs"
)

// Error is the class of entity reference errors.
var Error = errs.Class("entity")

// Kind identifies an entity variant.
type Kind int

const (
	KindApplication Kind = iota + 1
	KindProgram
	KindDataset
	KindStream
	KindView
	KindArtifact
)

var kindNames = map[Kind]string{
	KindApplication: "application",
	KindProgram:     "program",
	KindDataset:     "datasetinstance",
	KindStream:      "stream",
	KindView:        "stream_view",
	KindArtifact:    "artifact",
}

// Kinds lists every entity kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindApplication, KindProgram, KindDataset, KindStream, KindView, KindArtifact}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind parses the wire name of a kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return 0, Error.New("unknown entity type %q", s)
}

// Mode is the execution mode of a program type.
type Mode string

const (
	Realtime Mode = "Realtime"
	Batch    Mode = "Batch"
)

// ProgramType enumerates the program kinds an application can contain.
type ProgramType int

const (
	Flow ProgramType = iota + 1
	MapReduce
	Spark
	Workflow
	Service
	Worker
)

type programTypeInfo struct {
	name     string
	pretty   string
	category string
	mode     Mode
}

var programTypes = map[ProgramType]programTypeInfo{
	Flow:      {name: "flow", pretty: "Flow", category: "flows", mode: Realtime},
	MapReduce: {name: "mapreduce", pretty: "MapReduce", category: "mapreduce", mode: Batch},
	Spark:     {name: "spark", pretty: "Spark", category: "spark", mode: Batch},
	Workflow:  {name: "workflow", pretty: "Workflow", category: "workflows", mode: Batch},
	Service:   {name: "service", pretty: "Service", category: "services", mode: Realtime},
	Worker:    {name: "worker", pretty: "Worker", category: "workers", mode: Realtime},
}

// ProgramTypes lists every program type in declaration order.
func ProgramTypes() []ProgramType {
	return []ProgramType{Flow, MapReduce, Spark, Workflow, Service, Worker}
}

func (p ProgramType) String() string { return programTypes[p].name }

// PrettyName is the display name, e.g. "MapReduce".
func (p ProgramType) PrettyName() string { return programTypes[p].pretty }

// Category is the plural form used in HTTP paths, e.g. "flows".
func (p ProgramType) Category() string { return programTypes[p].category }

// Mode reports whether programs of this type run continuously or in batches.
func (p ProgramType) Mode() Mode { return programTypes[p].mode }

// ParseProgramType accepts the lowercase name, the pretty name or the path
// category of a program type, ignoring case.
func ParseProgramType(s string) (ProgramType, error) {
	for _, p := range ProgramTypes() {
		info := programTypes[p]
		if strings.EqualFold(s, info.name) || strings.EqualFold(s, info.pretty) || strings.EqualFold(s, info.category) {
			return p, nil
		}
	}
	return 0, Error.New("unknown program type %q", s)
}

func (p ProgramType) MarshalText() ([]byte, error) {
	if _, ok := programTypes[p]; !ok {
		return nil, Error.New("unknown program type %d", int(p))
	}
	return []byte(p.PrettyName()), nil
}

func (p *ProgramType) UnmarshalText(text []byte) error {
	t, err := ParseProgramType(string(text))
	if err != nil {
		return err
	}
	*p = t
	return nil
}
