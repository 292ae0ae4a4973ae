package alerts

import "errors"

// ErrNotFound indicates a missing alert record.
var ErrNotFound = errors.New("alert: not found")

// ErrInvalidState indicates an illegal lifecycle transition.
var ErrInvalidState = errors.New("alert: invalid state transition")

// ErrInvalidRule indicates a rule configuration that violates its invariants.
var ErrInvalidRule = errors.New("alert rule: invalid")
