package student

import "errors"

var (
	// ErrInvalidIdentifier is returned when an identifier is not a well-formed storage key.
	ErrInvalidIdentifier = errors.New("roster: invalid student identifier")

	// ErrNotFound is returned when no student holds a well-formed identifier.
	ErrNotFound = errors.New("roster: student not found")

	// ErrValidation is returned, wrapped with details, when input fails schema validation.
	ErrValidation = errors.New("roster: invalid student data")
)
