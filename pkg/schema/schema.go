// ABOUTME: Record schemas carried as system metadata on streams, views and datasets
// ABOUTME: Parses and prints the JSON schema form and flattens fields for indexing

package schema

import (
	"encoding/json"
	"strings"

	"github.com/zeebo/errs"
)

// Error is the class of schema parse failures.
var Error = errs.Class("schema")

// Type is a schema type name.
type Type string

const (
	Null    Type = "null"
	Boolean Type = "boolean"
	Int     Type = "int"
	Long    Type = "long"
	Float   Type = "float"
	Double  Type = "double"
	Bytes   Type = "bytes"
	String  Type = "string"
	Enum    Type = "enum"
	Array   Type = "array"
	Map     Type = "map"
	Record  Type = "record"
	Union   Type = "union"
)

var primitives = map[Type]bool{
	Null: true, Boolean: true, Int: true, Long: true,
	Float: true, Double: true, Bytes: true, String: true,
}

// Schema describes a value. Only the fields relevant to Type are set.
type Schema struct {
	Type    Type
	Name    string    // record and enum
	Fields  []Field   // record
	Symbols []string  // enum
	Items   *Schema   // array
	Values  *Schema   // map
	Union   []*Schema // union
}

// Field is a named record member.
type Field struct {
	Name   string
	Schema *Schema
}

// Of returns a primitive schema.
func Of(t Type) *Schema { return &Schema{Type: t} }

// NullableOf returns the union of s and null.
func NullableOf(s *Schema) *Schema {
	return &Schema{Type: Union, Union: []*Schema{s, Of(Null)}}
}

// ArrayOf returns an array schema.
func ArrayOf(items *Schema) *Schema { return &Schema{Type: Array, Items: items} }

// MapOf returns a map schema with string keys.
func MapOf(values *Schema) *Schema { return &Schema{Type: Map, Values: values} }

// RecordOf returns a record schema.
func RecordOf(name string, fields ...Field) *Schema {
	return &Schema{Type: Record, Name: name, Fields: fields}
}

// NewField is shorthand for a Field literal.
func NewField(name string, s *Schema) Field { return Field{Name: name, Schema: s} }

// NonNullable unwraps a union of one type and null.
func (s *Schema) NonNullable() (*Schema, bool) {
	if s.Type != Union || len(s.Union) != 2 {
		return s, false
	}
	switch {
	case s.Union[0].Type == Null:
		return s.Union[1], true
	case s.Union[1].Type == Null:
		return s.Union[0], true
	}
	return s, false
}

// Parse reads the JSON form of a schema.
func Parse(text string) (*Schema, error) {
	s, err := parse(json.RawMessage(text))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func parse(raw json.RawMessage) (*Schema, error) {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return nil, Error.New("empty schema")
	}

	switch raw[0] {
	case '"':
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, Error.Wrap(err)
		}
		if !primitives[Type(name)] {
			return nil, Error.New("unknown type %q", name)
		}
		return Of(Type(name)), nil

	case '[':
		var members []json.RawMessage
		if err := json.Unmarshal(raw, &members); err != nil {
			return nil, Error.Wrap(err)
		}
		if len(members) == 0 {
			return nil, Error.New("empty union")
		}
		u := &Schema{Type: Union}
		for _, m := range members {
			s, err := parse(m)
			if err != nil {
				return nil, err
			}
			u.Union = append(u.Union, s)
		}
		return u, nil

	case '{':
		return parseObject(raw)
	}
	return nil, Error.New("unexpected schema %.20q", string(raw))
}

type object struct {
	Type    json.RawMessage `json:"type"`
	Name    string          `json:"name"`
	Fields  []objectField   `json:"fields"`
	Symbols []string        `json:"symbols"`
	Items   json.RawMessage `json:"items"`
	Values  json.RawMessage `json:"values"`
}

type objectField struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

func parseObject(raw json.RawMessage) (*Schema, error) {
	var o object
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, Error.Wrap(err)
	}
	if len(o.Type) == 0 {
		return nil, Error.New("missing type")
	}

	var name string
	if err := json.Unmarshal(o.Type, &name); err != nil {
		// {"type": {...}} or {"type": [...]} wraps another schema
		return parse(o.Type)
	}

	switch Type(name) {
	case Record:
		if o.Name == "" {
			return nil, Error.New("record without name")
		}
		rec := RecordOf(o.Name)
		for _, f := range o.Fields {
			if f.Name == "" {
				return nil, Error.New("record %s has a field without name", o.Name)
			}
			fs, err := parse(f.Type)
			if err != nil {
				return nil, err
			}
			rec.Fields = append(rec.Fields, NewField(f.Name, fs))
		}
		return rec, nil
	case Enum:
		return &Schema{Type: Enum, Name: o.Name, Symbols: o.Symbols}, nil
	case Array:
		items, err := parse(o.Items)
		if err != nil {
			return nil, err
		}
		return ArrayOf(items), nil
	case Map:
		values, err := parse(o.Values)
		if err != nil {
			return nil, err
		}
		return MapOf(values), nil
	}
	if primitives[Type(name)] {
		return Of(Type(name)), nil
	}
	return nil, Error.New("unknown type %q", name)
}

// MarshalJSON writes the canonical JSON form.
func (s *Schema) MarshalJSON() ([]byte, error) {
	switch s.Type {
	case Union:
		return json.Marshal(s.Union)
	case Record:
		type field struct {
			Name string  `json:"name"`
			Type *Schema `json:"type"`
		}
		fields := make([]field, 0, len(s.Fields))
		for _, f := range s.Fields {
			fields = append(fields, field{Name: f.Name, Type: f.Schema})
		}
		return json.Marshal(struct {
			Type   Type    `json:"type"`
			Name   string  `json:"name"`
			Fields []field `json:"fields"`
		}{Record, s.Name, fields})
	case Enum:
		return json.Marshal(struct {
			Type    Type     `json:"type"`
			Name    string   `json:"name,omitempty"`
			Symbols []string `json:"symbols"`
		}{Enum, s.Name, s.Symbols})
	case Array:
		return json.Marshal(struct {
			Type  Type    `json:"type"`
			Items *Schema `json:"items"`
		}{Array, s.Items})
	case Map:
		return json.Marshal(struct {
			Type   Type    `json:"type"`
			Keys   Type    `json:"keys"`
			Values *Schema `json:"values"`
		}{Map, String, s.Values})
	}
	return json.Marshal(string(s.Type))
}

// String returns the canonical JSON form.
func (s *Schema) String() string {
	data, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(data)
}

// FieldType is a flattened field name and its upper-case type label.
type FieldType struct {
	Name string
	Type string
}

// Fields flattens the record fields of s, descending into nested records.
// Nullable fields report their inner type.
func Fields(s *Schema) []FieldType {
	var out []FieldType
	collect(s, &out)
	return out
}

func collect(s *Schema, out *[]FieldType) {
	s, _ = s.NonNullable()
	if s.Type != Record {
		return
	}
	for _, f := range s.Fields {
		inner, _ := f.Schema.NonNullable()
		*out = append(*out, FieldType{Name: f.Name, Type: strings.ToUpper(string(inner.Type))})
		collect(inner, out)
	}
}
