package store

import "github.com/google/uuid"

// NewRunID returns a UUIDv7 run id. Ids sort by creation time.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}
