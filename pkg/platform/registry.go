// ABOUTME: Registry contract for namespaces and entity definitions
// ABOUTME: Backends keep an encoded definition per entity reference

package platform

import (
	"context"
	"encoding/json"

	"github.com/zeebo/errs"

	"github.com/nainya/metacatalog/pkg/entity"
)

var Error = errs.Class("platform")

// Registry stores namespaces and the definitions of the entities inside
// them. Deleting a namespace deletes every definition it holds.
type Registry interface {
	CreateNamespace(ctx context.Context, namespace string) error
	DeleteNamespace(ctx context.Context, namespace string) error
	HasNamespace(ctx context.Context, namespace string) (bool, error)
	Namespaces(ctx context.Context) ([]string, error)

	Put(ctx context.Context, id entity.ID, definition []byte) error
	Get(ctx context.Context, id entity.ID) ([]byte, bool, error)
	Delete(ctx context.Context, id entity.ID) error
	// List returns the entities of kind in namespace ordered by their string
	// form.
	List(ctx context.Context, namespace string, kind entity.Kind) ([]entity.ID, error)

	Close() error
}

// PutSpec encodes spec and stores it under id.
func PutSpec(ctx context.Context, r Registry, id entity.ID, spec any) error {
	data, err := json.Marshal(spec)
	if err != nil {
		return Error.Wrap(err)
	}
	return r.Put(ctx, id, data)
}

// GetSpec loads the definition of id into spec.
func GetSpec(ctx context.Context, r Registry, id entity.ID, spec any) (bool, error) {
	data, ok, err := r.Get(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(data, spec); err != nil {
		return false, Error.New("decoding %s: %v", id, err)
	}
	return true, nil
}
