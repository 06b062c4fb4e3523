package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrOutOfBounds is returned when a coordinate maps outside the page geometry.
	ErrOutOfBounds = errors.New("coordinate out of bounds")
	// ErrPersistence wraps every durable read, write, shift or retag failure.
	ErrPersistence = errors.New("persistence failure")
	// ErrNotResident is returned by operations that need a loaded page.
	ErrNotResident = errors.New("no page resident")
	// ErrInvalidPage is returned for an empty document name or negative page.
	ErrInvalidPage = errors.New("invalid page key")
	// ErrPageOccupied is returned when a retag target already holds content.
	ErrPageOccupied = errors.New("page already occupied")
)
