package entity

import (
	"encoding/json"
)

type wireID struct {
	Type        string `json:"type"`
	Namespace   string `json:"namespace"`
	Application string `json:"application,omitempty"`
	ProgramType string `json:"programType,omitempty"`
	Program     string `json:"program,omitempty"`
	Dataset     string `json:"dataset,omitempty"`
	Stream      string `json:"stream,omitempty"`
	View        string `json:"view,omitempty"`
	Artifact    string `json:"artifact,omitempty"`
	Version     string `json:"version,omitempty"`
}

func toWire(id ID) wireID {
	w := wireID{Type: id.Kind().String(), Namespace: id.NamespaceID()}
	switch v := id.(type) {
	case Application:
		w.Application = v.Name
	case Program:
		w.Application = v.Application.Name
		w.ProgramType = v.Type.PrettyName()
		w.Program = v.Name
	case Dataset:
		w.Dataset = v.Name
	case Stream:
		w.Stream = v.Name
	case View:
		w.Stream = v.Stream.Name
		w.View = v.Name
	case Artifact:
		w.Artifact = v.Name
		w.Version = v.Version
	}
	return w
}

func (a Application) MarshalJSON() ([]byte, error) { return json.Marshal(toWire(a)) }
func (p Program) MarshalJSON() ([]byte, error)     { return json.Marshal(toWire(p)) }
func (d Dataset) MarshalJSON() ([]byte, error)     { return json.Marshal(toWire(d)) }
func (s Stream) MarshalJSON() ([]byte, error)      { return json.Marshal(toWire(s)) }
func (v View) MarshalJSON() ([]byte, error)        { return json.Marshal(toWire(v)) }
func (a Artifact) MarshalJSON() ([]byte, error)    { return json.Marshal(toWire(a)) }

// Decode parses the JSON form of any entity reference.
func Decode(data []byte) (ID, error) {
	var w wireID
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, Error.Wrap(err)
	}
	kind, err := ParseKind(w.Type)
	if err != nil {
		return nil, err
	}

	var parts []string
	switch kind {
	case KindApplication:
		parts = []string{w.Namespace, w.Application}
	case KindProgram:
		parts = []string{w.Namespace, w.Application, w.ProgramType, w.Program}
	case KindDataset:
		parts = []string{w.Namespace, w.Dataset}
	case KindStream:
		parts = []string{w.Namespace, w.Stream}
	case KindView:
		parts = []string{w.Namespace, w.Stream, w.View}
	case KindArtifact:
		parts = []string{w.Namespace, w.Artifact, w.Version}
	}
	for _, p := range parts {
		if p == "" {
			return nil, Error.New("incomplete %s reference", kind)
		}
	}
	return FromParts(kind, parts)
}

// Ref wraps an ID so it can be decoded from JSON.
type Ref struct {
	ID
}

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.ID == nil {
		return []byte("null"), nil
	}
	return json.Marshal(toWire(r.ID))
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	id, err := Decode(data)
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}
