// ABOUTME: Typed, namespaced entity references
// ABOUTME: One comparable struct per entity kind, compared structurally

package entity

import "strings"

const (
	// DefaultNamespace is the namespace user entities land in when none is given.
	DefaultNamespace = "default"
	// SystemNamespace holds platform-provided entities visible from every namespace.
	SystemNamespace = "system"
)

// ID is a reference to an entity. Implementations are comparable values and
// may be used as map keys.
type ID interface {
	Kind() Kind
	NamespaceID() string
	// Parts are the structural fields of the reference, namespace first.
	Parts() []string
	String() string
}

// Application references a deployed application.
type Application struct {
	Namespace string
	Name      string
}

func (a Application) Kind() Kind          { return KindApplication }
func (a Application) NamespaceID() string { return a.Namespace }
func (a Application) Parts() []string     { return []string{a.Namespace, a.Name} }
func (a Application) String() string      { return format(a) }

// Program returns a reference to a program of this application.
func (a Application) Program(t ProgramType, name string) Program {
	return Program{Application: a, Type: t, Name: name}
}

// Program references a program inside an application.
type Program struct {
	Application Application
	Type        ProgramType
	Name        string
}

func (p Program) Kind() Kind          { return KindProgram }
func (p Program) NamespaceID() string { return p.Application.Namespace }
func (p Program) Parts() []string {
	return []string{p.Application.Namespace, p.Application.Name, p.Type.String(), p.Name}
}
func (p Program) String() string { return format(p) }

// Dataset references a dataset instance.
type Dataset struct {
	Namespace string
	Name      string
}

func (d Dataset) Kind() Kind          { return KindDataset }
func (d Dataset) NamespaceID() string { return d.Namespace }
func (d Dataset) Parts() []string     { return []string{d.Namespace, d.Name} }
func (d Dataset) String() string      { return format(d) }

// Stream references a stream.
type Stream struct {
	Namespace string
	Name      string
}

func (s Stream) Kind() Kind          { return KindStream }
func (s Stream) NamespaceID() string { return s.Namespace }
func (s Stream) Parts() []string     { return []string{s.Namespace, s.Name} }
func (s Stream) String() string      { return format(s) }

// View returns a reference to a view of this stream.
func (s Stream) View(name string) View { return View{Stream: s, Name: name} }

// View references a view derived from a stream.
type View struct {
	Stream Stream
	Name   string
}

func (v View) Kind() Kind          { return KindView }
func (v View) NamespaceID() string { return v.Stream.Namespace }
func (v View) Parts() []string     { return []string{v.Stream.Namespace, v.Stream.Name, v.Name} }
func (v View) String() string      { return format(v) }

// Artifact references a versioned deployable artifact.
type Artifact struct {
	Namespace string
	Name      string
	Version   string
}

func (a Artifact) Kind() Kind          { return KindArtifact }
func (a Artifact) NamespaceID() string { return a.Namespace }
func (a Artifact) Parts() []string     { return []string{a.Namespace, a.Name, a.Version} }
func (a Artifact) String() string      { return format(a) }

func format(id ID) string {
	return id.Kind().String() + ":" + strings.Join(id.Parts(), ".")
}

var partCounts = map[Kind]int{
	KindApplication: 2,
	KindProgram:     4,
	KindDataset:     2,
	KindStream:      2,
	KindView:        3,
	KindArtifact:    3,
}

// PartCount returns the number of parts a reference of the given kind has,
// or 0 for an unknown kind.
func PartCount(kind Kind) int { return partCounts[kind] }

// FromParts rebuilds a reference from its kind and parts.
func FromParts(kind Kind, parts []string) (ID, error) {
	n := PartCount(kind)
	if n == 0 {
		return nil, Error.New("unknown kind %d", int(kind))
	}
	if len(parts) != n {
		return nil, Error.New("%s needs %d parts, got %d", kind, n, len(parts))
	}

	switch kind {
	case KindApplication:
		return Application{Namespace: parts[0], Name: parts[1]}, nil
	case KindProgram:
		t, err := ParseProgramType(parts[2])
		if err != nil {
			return nil, err
		}
		return Program{Application: Application{Namespace: parts[0], Name: parts[1]}, Type: t, Name: parts[3]}, nil
	case KindDataset:
		return Dataset{Namespace: parts[0], Name: parts[1]}, nil
	case KindStream:
		return Stream{Namespace: parts[0], Name: parts[1]}, nil
	case KindView:
		return View{Stream: Stream{Namespace: parts[0], Name: parts[1]}, Name: parts[2]}, nil
	default:
		return Artifact{Namespace: parts[0], Name: parts[1], Version: parts[2]}, nil
	}
}

// Parent returns the owning entity of programs and views.
func Parent(id ID) (ID, bool) {
	switch v := id.(type) {
	case Program:
		return v.Application, true
	case View:
		return v.Stream, true
	}
	return nil, false
}
