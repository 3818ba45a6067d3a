// Package sentinel holds the store-level error facts shared by every backend.
//
// Memory, Postgres and Redis stores return these, wrapped with context, and
// services translate them into pkg/domain-errors codes. Input validation never
// produces a sentinel.
package sentinel

import "errors"

var (
	// ErrNotFound: no entity with that id, or no binding for that serial or
	// entity.
	ErrNotFound = errors.New("not found")

	// ErrConflict: the serial or id is already held by another record.
	ErrConflict = errors.New("conflict")

	// ErrInvalidState: the stored record contradicts an invariant, such as a
	// checked-in entity without a check-in time.
	ErrInvalidState = errors.New("invalid state")
)
