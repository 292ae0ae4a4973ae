package fleet

import "errors"

// ErrNotFound indicates a missing fleet record.
var ErrNotFound = errors.New("fleet: not found")
