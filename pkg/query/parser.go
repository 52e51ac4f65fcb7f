// ABOUTME: Search query parsing into keyed and unkeyed term predicates
// ABOUTME: Terms are case-folded and combined by conjunction

package query

import (
	"strings"
	"unicode"

	"github.com/nainya/metacatalog/pkg/entity"
	"github.com/nainya/metacatalog/pkg/index"
	"github.com/nainya/metacatalog/pkg/metadata"
)

const wildcard = "*"

// Term is one predicate of a query. Key is empty for unkeyed terms.
type Term struct {
	Key     string
	Pattern string
	Prefix  bool
}

// IndexTerm returns the lowered index term the predicate is looked up by.
func (t Term) IndexTerm() string {
	if t.Key == "" {
		return t.Pattern
	}
	return index.Keyed(t.Key, t.Pattern)
}

func (t Term) String() string {
	s := t.IndexTerm()
	if t.Prefix {
		s += wildcard
	}
	return s
}

// Parse splits a query string into terms. Terms are separated by whitespace
// or '+'.
func Parse(q string) ([]Term, error) {
	raw := strings.FieldsFunc(q, func(r rune) bool {
		return r == '+' || unicode.IsSpace(r)
	})
	if len(raw) == 0 {
		return nil, metadata.ErrBadRequest.New("empty search query")
	}

	terms := make([]Term, 0, len(raw))
	for _, r := range raw {
		t, err := parseTerm(strings.ToLower(r))
		if err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, nil
}

func parseTerm(s string) (Term, error) {
	var t Term
	pattern := s
	if i := strings.Index(s, index.KeyValueSeparator); i >= 0 {
		t.Key = s[:i]
		pattern = s[i+1:]
		if t.Key == "" {
			return Term{}, metadata.ErrBadRequest.New("missing key in %q", s)
		}
		if strings.Contains(t.Key, wildcard) {
			return Term{}, metadata.ErrBadRequest.New("wildcard not allowed in key of %q", s)
		}
	}

	if strings.HasSuffix(pattern, wildcard) {
		t.Prefix = true
		pattern = strings.TrimSuffix(pattern, wildcard)
	}
	if strings.Contains(pattern, wildcard) {
		return Term{}, metadata.ErrBadRequest.New("wildcard must end the pattern in %q", s)
	}
	if pattern == "" && t.Key == "" {
		return Term{}, metadata.ErrBadRequest.New("unkeyed wildcard %q matches everything", s)
	}
	if pattern == "" && !t.Prefix {
		return Term{}, metadata.ErrBadRequest.New("missing value in %q", s)
	}
	t.Pattern = pattern
	return t, nil
}

// Target restricts search results to one entity kind.
type Target int

const (
	TargetAll Target = iota
	TargetApp
	TargetProgram
	TargetDataset
	TargetStream
	TargetView
	TargetArtifact
)

var targetNames = map[Target]string{
	TargetAll:      "ALL",
	TargetApp:      "APP",
	TargetProgram:  "PROGRAM",
	TargetDataset:  "DATASET",
	TargetStream:   "STREAM",
	TargetView:     "VIEW",
	TargetArtifact: "ARTIFACT",
}

var targetKinds = map[Target]entity.Kind{
	TargetApp:      entity.KindApplication,
	TargetProgram:  entity.KindProgram,
	TargetDataset:  entity.KindDataset,
	TargetStream:   entity.KindStream,
	TargetView:     entity.KindView,
	TargetArtifact: entity.KindArtifact,
}

func (t Target) String() string {
	if name, ok := targetNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Matches reports whether id is of the kind t selects.
func (t Target) Matches(id entity.ID) bool {
	if t == TargetAll {
		return true
	}
	kind, ok := targetKinds[t]
	return ok && id.Kind() == kind
}

// ParseTarget parses a target name case-insensitively. The empty string
// selects every kind.
func ParseTarget(s string) (Target, error) {
	if s == "" {
		return TargetAll, nil
	}
	upper := strings.ToUpper(s)
	for t, name := range targetNames {
		if name == upper {
			return t, nil
		}
	}
	return TargetAll, metadata.ErrBadRequest.New("unknown target type %q", s)
}
