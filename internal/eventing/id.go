package eventing

import "github.com/google/uuid"

// NewEventID mints the identifier stamped on every envelope and outbox row.
func NewEventID() string {
	return uuid.NewString()
}
