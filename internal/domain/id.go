package domain

import "github.com/google/uuid"

// NewRunID generates a time-ordered UUIDv7 for a pipeline run.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}
