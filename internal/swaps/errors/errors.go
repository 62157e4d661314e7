package errors

import "errors"

var (
	ErrNotFound = errors.New("swap request not found")

	ErrInvalidID = errors.New("invalid swap request ID format")

	// ErrDuplicatePending means the requested slot already has a pending request.
	ErrDuplicatePending = errors.New("requested slot already has a pending swap request")

	// ErrNotPending means the request was closed by someone else first.
	ErrNotPending = errors.New("swap request is not pending")

	ErrAlreadyExists = errors.New("swap request already exists")
)
