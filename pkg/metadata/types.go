// ABOUTME: Metadata data model: scopes and per-scope records
// ABOUTME: A record holds the properties and tags of one entity in one scope

package metadata

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/nainya/metacatalog/pkg/entity"
)

// Scope separates caller-authored metadata from platform-derived metadata.
type Scope int

const (
	User Scope = iota + 1
	System
)

// Scopes lists both scopes, USER first.
func Scopes() []Scope { return []Scope{User, System} }

func (s Scope) String() string {
	switch s {
	case User:
		return "USER"
	case System:
		return "SYSTEM"
	}
	return "UNKNOWN"
}

// ParseScope accepts "user" or "system" in any case.
func ParseScope(text string) (Scope, error) {
	switch strings.ToLower(text) {
	case "user":
		return User, nil
	case "system":
		return System, nil
	}
	return 0, ErrBadRequest.New("invalid scope %q", text)
}

func (s Scope) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Scope) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return ErrBadRequest.Wrap(err)
	}
	parsed, err := ParseScope(text)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Record is the metadata of one entity in one scope.
type Record struct {
	EntityID   entity.ID
	Scope      Scope
	Properties map[string]string
	Tags       []string
}

type wireRecord struct {
	EntityID   entity.Ref        `json:"entityId"`
	Scope      Scope             `json:"scope"`
	Properties map[string]string `json:"properties"`
	Tags       []string          `json:"tags"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		EntityID:   entity.Ref{ID: r.EntityID},
		Scope:      r.Scope,
		Properties: r.Properties,
		Tags:       r.Tags,
	}
	if w.Properties == nil {
		w.Properties = map[string]string{}
	}
	if w.Tags == nil {
		w.Tags = []string{}
	}
	return json.Marshal(w)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = Record{EntityID: w.EntityID.ID, Scope: w.Scope, Properties: w.Properties, Tags: w.Tags}
	return nil
}

// Empty reports whether the record has neither properties nor tags.
func (r Record) Empty() bool {
	return len(r.Properties) == 0 && len(r.Tags) == 0
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
