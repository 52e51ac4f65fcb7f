package metadata

import (
	"github.com/nainya/metacatalog/pkg/entity"
	"github.com/nainya/metacatalog/pkg/storage"
)

// Prefixes for metadata storage
const (
	PREFIX_RECORD  = uint32(7000) // (ns, kind, parts, scope, row, name) -> value
	PREFIX_INDEX   = uint32(7100) // (ns, term, kind, parts, scope, row, name) -> marker
	PREFIX_POSTING = uint32(7200) // (ns, kind, parts, scope, row, name, term) -> marker
)

// Row kinds inside a record.
const (
	rowProperty = "p"
	rowTag      = "t"
)

var marker = []byte{1}

// entityParts is the key form of an entity: namespace, kind, then the
// remaining structural parts.
func entityParts(id entity.ID) []string {
	parts := id.Parts()
	out := make([]string, 0, len(parts)+1)
	out = append(out, parts[0], id.Kind().String())
	return append(out, parts[1:]...)
}

// splitEntity decodes an entity whose namespace is ns and whose kind starts
// rest. It returns the parts following the entity.
func splitEntity(ns string, rest []string) (entity.ID, []string, error) {
	if len(rest) == 0 {
		return nil, nil, storage.Error.New("missing entity kind")
	}
	kind, err := entity.ParseKind(rest[0])
	if err != nil {
		return nil, nil, err
	}
	n := entity.PartCount(kind) - 1
	if len(rest)-1 < n {
		return nil, nil, storage.Error.New("truncated %s key", kind)
	}
	parts := append([]string{ns}, rest[1:1+n]...)
	id, err := entity.FromParts(kind, parts)
	if err != nil {
		return nil, nil, err
	}
	return id, rest[1+n:], nil
}

func join(a []string, b ...string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func recordKey(id entity.ID, scope Scope, row, name string) []byte {
	return storage.EncodeKey(PREFIX_RECORD, join(entityParts(id), scope.String(), row, name)...)
}

func recordPrefix(id entity.ID, parts ...string) []byte {
	return storage.EncodeKey(PREFIX_RECORD, join(entityParts(id), parts...)...)
}

func indexKey(id entity.ID, term string, scope Scope, row, name string) []byte {
	ep := entityParts(id)
	parts := join([]string{ep[0], term}, ep[1:]...)
	return storage.EncodeKey(PREFIX_INDEX, join(parts, scope.String(), row, name)...)
}

func postingKey(id entity.ID, scope Scope, row, name, term string) []byte {
	return storage.EncodeKey(PREFIX_POSTING, join(entityParts(id), scope.String(), row, name, term)...)
}

func postingPrefix(id entity.ID, scope Scope, row, name string) []byte {
	return storage.EncodeKey(PREFIX_POSTING, join(entityParts(id), scope.String(), row, name)...)
}
