package repository

import "errors"

// ErrNotFound is returned when a row does not exist or is not visible to the
// requesting organization. Wrapped with entity context at call sites.
var ErrNotFound = errors.New("not found")
