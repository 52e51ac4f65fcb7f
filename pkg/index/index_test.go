package index

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/nainya/metacatalog/pkg/schema"
)

func TestMultiwordValue(t *testing.T) {
	terms := New().PropertyTerms("multiword", "wow1 WoW2   -    WOW3 - wow4_woW5 wow6")

	for _, want := range []string{
		"wow1", "wow2", "wow3", "wow4", "wow5", "wow6",
		"multiword:wow1", "multiword:wow5",
		"wow1 wow2   -    wow3 - wow4_wow5 wow6",
		"multiword:wow1 wow2   -    wow3 - wow4_wow5 wow6",
	} {
		assert.Contains(t, terms, want)
	}
	assert.NotContains(t, terms, "-")
}

func TestTagTerms(t *testing.T) {
	terms := New().TagTerms("View_Tag")
	assert.ElementsMatch(t, []string{
		"view_tag", "view", "tag",
		"tags:view_tag", "tags:view", "tags:tag",
	}, terms)
}

func TestSchemaTerms(t *testing.T) {
	s := schema.RecordOf("stringBody", schema.NewField("body", schema.NullableOf(schema.Of(schema.String))))
	terms := New().PropertyTerms("schema", s.String())

	assert.ElementsMatch(t, []string{"body", "body:string", "schema:body", "schema:body:string"}, terms)
}

func TestSchemaFallback(t *testing.T) {
	terms := New().PropertyTerms("Schema", "notASchema")
	assert.ElementsMatch(t, []string{"notaschema", "schema:notaschema"}, terms)
}

func TestPluginValue(t *testing.T) {
	terms := New().PropertyTerms("plugin:mock:jdbc", "mock:jdbc")
	assert.Contains(t, terms, "mock:jdbc")
	assert.Contains(t, terms, "jdbc")
	assert.Contains(t, terms, "plugin:mock:jdbc:mock")
}

func TestRegister(t *testing.T) {
	r := New()
	r.Register("Raw", rawIndexer{})
	assert.Equal(t, []string{"X"}, r.PropertyTerms("raw", "anything"))
}

type rawIndexer struct{}

func (rawIndexer) Terms(key, value string) []string { return []string{"X"} }

func TestTokenizeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("tokens never contain separators", prop.ForAll(
		func(s string) bool {
			for _, tok := range Tokenize(s) {
				if tok == "" || strings.ContainsAny(tok, " \t\n-_:") {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.Property("terms are lower case and keyed ones carry the key", prop.ForAll(
		func(key, value string) bool {
			terms := New().PropertyTerms(key, value)
			lowKey := strings.ToLower(key)
			keyed := 0
			for _, term := range terms {
				if term != strings.ToLower(term) {
					return false
				}
				if strings.HasPrefix(term, lowKey+":") {
					keyed++
				}
			}
			return keyed > 0
		},
		gen.Identifier(),
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.TestingRun(t)
}
