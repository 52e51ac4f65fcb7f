// ABOUTME: Turns property and tag writes into case-folded search terms
// ABOUTME: Value tokens, key:value pairs, tag terms and schema field terms

package index

import (
	"sort"
	"strings"
	"unicode"

	"github.com/nainya/metacatalog/pkg/schema"
)

const (
	// KeyValueSeparator joins a key and a value in keyed terms.
	KeyValueSeparator = ":"
	// TagsKey is the key under which tags are searchable, as in "tags:t".
	TagsKey = "tags"
	// SchemaKey is the property holding a record schema.
	SchemaKey = "schema"
)

// Indexer produces the terms for one property. Terms must be case-folded.
type Indexer interface {
	Terms(key, value string) []string
}

// Tokenize splits s on whitespace and the separators '-', '_' and ':'.
func Tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_' || r == ':'
	})
}

// Keyed joins key and value the way keyed queries address them.
func Keyed(key, value string) string {
	return key + KeyValueSeparator + value
}

// ValueIndexer indexes the whole value and each of its tokens, both bare and
// prefixed with the key.
type ValueIndexer struct{}

func (ValueIndexer) Terms(key, value string) []string {
	key = strings.ToLower(key)
	value = strings.ToLower(value)

	words := append([]string{value}, Tokenize(value)...)
	terms := make([]string, 0, 2*len(words))
	for _, w := range words {
		terms = append(terms, w, Keyed(key, w))
	}
	return dedupe(terms)
}

// SchemaIndexer indexes each record field as "name" and "name:TYPE", bare
// and under the property key. Values that are not record schemas fall back
// to the value indexer.
type SchemaIndexer struct{}

func (SchemaIndexer) Terms(key, value string) []string {
	s, err := schema.Parse(value)
	if err != nil {
		return ValueIndexer{}.Terms(key, value)
	}
	fields := schema.Fields(s)
	if len(fields) == 0 {
		return ValueIndexer{}.Terms(key, value)
	}

	key = strings.ToLower(key)
	terms := make([]string, 0, 4*len(fields))
	for _, f := range fields {
		name := strings.ToLower(f.Name)
		typed := Keyed(name, strings.ToLower(f.Type))
		terms = append(terms, name, typed, Keyed(key, name), Keyed(key, typed))
	}
	return dedupe(terms)
}

// Router picks an Indexer by property key.
type Router struct {
	fallback Indexer
	byKey    map[string]Indexer
}

// New returns the default router: schema properties are indexed by field,
// everything else by value.
func New() *Router {
	return &Router{
		fallback: ValueIndexer{},
		byKey:    map[string]Indexer{SchemaKey: SchemaIndexer{}},
	}
}

// Register makes ix handle properties named key, ignoring case.
func (r *Router) Register(key string, ix Indexer) {
	r.byKey[strings.ToLower(key)] = ix
}

// PropertyTerms returns the terms for property key=value.
func (r *Router) PropertyTerms(key, value string) []string {
	if ix, ok := r.byKey[strings.ToLower(key)]; ok {
		return ix.Terms(key, value)
	}
	return r.fallback.Terms(key, value)
}

// TagTerms returns the terms for a tag: the tag, its tokens and both under
// the tags key.
func (r *Router) TagTerms(tag string) []string {
	return ValueIndexer{}.Terms(TagsKey, tag)
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
