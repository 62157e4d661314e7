package errors

import "errors"

var (
	ErrNotFound = errors.New("slot not found")

	ErrInvalidID = errors.New("invalid slot ID format")

	// ErrVersionConflict means the slot changed after it was read.
	ErrVersionConflict = errors.New("slot version conflict")

	ErrAlreadyExists = errors.New("slot already exists")

	ErrInvalidTimeRange = errors.New("end time must be after start time")
)
