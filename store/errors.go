package store

import "errors"

var (
	// ErrNotFound is returned when an item doesn't exist, including when it
	// disappeared before a conditional update or delete was applied.
	ErrNotFound = errors.New("roster: item not found")

	// ErrAlreadyExists is returned when attempting to insert an item with an existing key.
	ErrAlreadyExists = errors.New("roster: item already exists")
)
