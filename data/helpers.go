package data

import "github.com/google/uuid"

// NewID generates a time-ordered identifier for journal entries.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
