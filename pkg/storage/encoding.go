// ABOUTME: Order-preserving encoding for composite keys
// ABOUTME: Table prefix followed by escaped, NUL-terminated string parts

package storage

import (
	"encoding/binary"
)

const (
	// tagString marks a string part. It never equals 0xFF so an encoded part
	// can always be bounded from above.
	tagString = 1

	escape     = 0xFE
	terminator = 0x00
)

// EncodeKey encodes a composite key: a 4-byte table prefix, then each part
// tagged, escaped and terminated. Keys sort by table, then part by part.
func EncodeKey(table uint32, parts ...string) []byte {
	out := make([]byte, 4, 4+estimate(parts))
	binary.BigEndian.PutUint32(out, table)
	for _, p := range parts {
		out = appendPart(out, p)
	}
	return out
}

// EncodePrefix encodes complete parts followed by an unterminated partial
// part. Every key whose part after the complete ones starts with partial has
// the result as a byte prefix.
func EncodePrefix(table uint32, partial string, parts ...string) []byte {
	out := EncodeKey(table, parts...)
	out = append(out, tagString)
	return append(out, escapeString([]byte(partial))...)
}

// DecodeKey splits a composite key back into its table and parts.
func DecodeKey(key []byte) (uint32, []string, error) {
	if len(key) < 4 {
		return 0, nil, Error.New("key too short")
	}
	table := binary.BigEndian.Uint32(key[:4])

	var parts []string
	data := key[4:]
	pos := 0
	for pos < len(data) {
		if data[pos] != tagString {
			return 0, nil, Error.New("unknown type %d at pos %d", data[pos], pos)
		}
		pos++

		end := pos
		for end < len(data) && data[end] != terminator {
			if data[end] == escape {
				end++
			}
			end++
		}
		if end >= len(data) {
			return 0, nil, Error.New("unterminated string at pos %d", pos)
		}
		parts = append(parts, string(unescapeString(data[pos:end])))
		pos = end + 1
	}
	return table, parts, nil
}

// PrefixEnd returns the smallest key greater than every key with the given
// prefix, or nil when no such key exists.
func PrefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func appendPart(out []byte, p string) []byte {
	out = append(out, tagString)
	out = append(out, escapeString([]byte(p))...)
	return append(out, terminator)
}

func estimate(parts []string) int {
	n := 0
	for _, p := range parts {
		n += len(p) + 2
	}
	return n
}

// escapeString escapes null bytes and 0xFF (and the escape byte itself) for
// embedding in keys
func escapeString(s []byte) []byte {
	escapes := 0
	for _, b := range s {
		if b == terminator || b == 0xFF || b == escape {
			escapes++
		}
	}
	if escapes == 0 {
		return s
	}

	out := make([]byte, 0, len(s)+escapes)
	for _, b := range s {
		switch b {
		case terminator:
			out = append(out, escape, 0x01)
		case escape:
			out = append(out, escape, 0x02)
		case 0xFF:
			out = append(out, escape, 0x03)
		default:
			out = append(out, b)
		}
	}
	return out
}

// unescapeString reverses escapeString
func unescapeString(s []byte) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == escape && i+1 < len(s) {
			switch s[i+1] {
			case 0x01:
				out = append(out, terminator)
			case 0x02:
				out = append(out, escape)
			default:
				out = append(out, 0xFF)
			}
			i++
			continue
		}
		out = append(out, s[i])
	}
	return out
}
