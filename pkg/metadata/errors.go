package metadata

import "github.com/zeebo/errs"

// Error kinds surfaced to callers. Anything that is not BadRequest or
// NotFound is treated as Internal.
var (
	ErrBadRequest = errs.Class("bad request")
	ErrNotFound   = errs.Class("not found")
	ErrInternal   = errs.Class("internal")
)

// internal wraps unexpected failures, leaving classified errors untouched.
func internal(err error) error {
	if err == nil || ErrBadRequest.Has(err) || ErrNotFound.Has(err) || ErrInternal.Has(err) {
		return err
	}
	return ErrInternal.Wrap(err)
}
