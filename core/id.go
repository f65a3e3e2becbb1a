package core

import "github.com/google/uuid"

// NewID returns a random identifier for goals, sessions and batches.
func NewID() string { return uuid.NewString() }
