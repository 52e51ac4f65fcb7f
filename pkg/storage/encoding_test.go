// ABOUTME: Tests for composite key encoding
// ABOUTME: Verifies order-preserving properties and roundtrip encoding

package storage

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeKeyRoundTrip(t *testing.T) {
	parts := []string{"default", "wow1", "", "with\x00null", "with\xfe\xffescapes"}
	key := EncodeKey(7000, parts...)

	table, decoded, err := DecodeKey(key)
	require.NoError(t, err)
	assert.Equal(t, uint32(7000), table)
	assert.Equal(t, parts, decoded)
}

func TestEncodeKeyOrdering(t *testing.T) {
	words := []string{"", "a", "aa", "ab", "b", "ba"}
	for i := 0; i < len(words)-1; i++ {
		a := EncodeKey(1, words[i], "x")
		b := EncodeKey(1, words[i+1], "x")
		assert.Negative(t, bytes.Compare(a, b), "%q should sort before %q", words[i], words[i+1])
	}

	assert.Negative(t, bytes.Compare(EncodeKey(1, "zzz"), EncodeKey(2, "a")))
}

func TestEncodePrefix(t *testing.T) {
	prefix := EncodePrefix(3, "wo", "default")

	assert.True(t, bytes.HasPrefix(EncodeKey(3, "default", "wow1", "entity"), prefix))
	assert.True(t, bytes.HasPrefix(EncodeKey(3, "default", "wo"), prefix))
	assert.False(t, bytes.HasPrefix(EncodeKey(3, "default", "w"), prefix))
	assert.False(t, bytes.HasPrefix(EncodeKey(3, "other", "wow1"), prefix))

	// a complete part must not match longer parts
	exact := EncodeKey(3, "default", "wo")
	assert.False(t, bytes.HasPrefix(EncodeKey(3, "default", "wow1"), exact))
}

func TestDecodeKeyErrors(t *testing.T) {
	_, _, err := DecodeKey([]byte{0, 1})
	assert.True(t, Error.Has(err))

	key := EncodeKey(1, "abc")
	_, _, err = DecodeKey(key[:len(key)-1])
	assert.Error(t, err)
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte{0x01, 0x03}, PrefixEnd([]byte{0x01, 0x02}))
	assert.Equal(t, []byte{0x02}, PrefixEnd([]byte{0x01, 0xFF}))
	assert.Nil(t, PrefixEnd([]byte{0xFF, 0xFF}))
}

func TestEncodingProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("decode inverts encode", prop.ForAll(
		func(a, b string) bool {
			_, parts, err := DecodeKey(EncodeKey(42, a, b))
			return err == nil && len(parts) == 2 && parts[0] == a && parts[1] == b
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("alphanumeric parts keep their order", prop.ForAll(
		func(a, b string) bool {
			cmp := bytes.Compare(EncodeKey(1, a, "tail"), EncodeKey(1, b, "tail"))
			switch {
			case a < b:
				return cmp < 0
			case a > b:
				return cmp > 0
			default:
				return cmp == 0
			}
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("prefix matches every extension", prop.ForAll(
		func(head, rest string) bool {
			return bytes.HasPrefix(EncodeKey(5, "ns", head+rest, "x"), EncodePrefix(5, head, "ns"))
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
