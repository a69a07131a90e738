package persistence

import "errors"

// Common persistence errors. Single-row lookups return (nil, nil) when
// no row matches; callers that need a 404 translate the nil themselves.
var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")

	// ErrStatusConflict means a guarded status update matched zero rows:
	// the email was not in the expected prior status.
	ErrStatusConflict = errors.New("email status conflict")
)
