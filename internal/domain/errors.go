package domain

import "errors"

// ErrNotFound marks an unknown group or session identifier. Queries must
// never conflate it with a transient failure.
var ErrNotFound = errors.New("not found")
