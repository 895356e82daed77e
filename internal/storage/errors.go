package storage

import "errors"

// ErrNotFound is returned when an organization-scoped lookup matches no row.
// Callers test for it with errors.Is.
var ErrNotFound = errors.New("storage: not found")
