package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	s, err := Parse(`{"type":"record","name":"stringBody","fields":[{"name":"body","type":"string"}]}`)
	require.NoError(t, err)
	assert.Equal(t, RecordOf("stringBody", NewField("body", Of(String))), s)
}

func TestRoundTrip(t *testing.T) {
	s := RecordOf("event",
		NewField("field1", Of(String)),
		NewField("count", NullableOf(Of(Long))),
		NewField("tags", ArrayOf(Of(String))),
		NewField("attrs", MapOf(Of(Bytes))),
		NewField("origin", RecordOf("origin", NewField("host", Of(String)))),
	)

	parsed, err := Parse(s.String())
	require.NoError(t, err)
	assert.Equal(t, s, parsed)
}

func TestFields(t *testing.T) {
	s := RecordOf("event",
		NewField("body", NullableOf(Of(Bytes))),
		NewField("origin", RecordOf("origin", NewField("host", Of(String)))),
	)

	assert.Equal(t, []FieldType{
		{Name: "body", Type: "BYTES"},
		{Name: "origin", Type: "RECORD"},
		{Name: "host", Type: "STRING"},
	}, Fields(s))

	assert.Empty(t, Fields(Of(String)))
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{
		``,
		`"nope"`,
		`[]`,
		`{"name":"x"}`,
		`{"type":"record","fields":[]}`,
		`{"type":"record","name":"r","fields":[{"name":"f","type":"bogus"}]}`,
		`not json`,
	} {
		_, err := Parse(text)
		assert.True(t, Error.Has(err), "expected schema error for %q", text)
	}
}

func TestNestedTypeObject(t *testing.T) {
	s, err := Parse(`{"type":"record","name":"r","fields":[{"name":"f","type":{"type":"string"}}]}`)
	require.NoError(t, err)
	assert.Equal(t, Of(String), s.Fields[0].Schema)
}
