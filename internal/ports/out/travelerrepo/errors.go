package travelerrepo

import "errors"

var (
	// ErrNotFound indicates the requested traveler does not exist.
	ErrNotFound = errors.New("traveler not found")

	// ErrSubjectAlreadyBound indicates a traveler already exists for the provided subject.
	ErrSubjectAlreadyBound = errors.New("traveler subject already bound")

	// ErrEmailAlreadyInUse indicates another traveler already has the provided email.
	ErrEmailAlreadyInUse = errors.New("traveler email already in use")

	// ErrAlreadyExists indicates a traveler already exists with the provided ID.
	ErrAlreadyExists = errors.New("traveler already exists")
)
