package crewrepo

import "errors"

var (
	// ErrNotFound indicates the requested crew (or join code, or membership) does not exist.
	ErrNotFound = errors.New("crew not found")

	// ErrAlreadyExists indicates a crew already exists with the provided ID.
	ErrAlreadyExists = errors.New("crew already exists")

	// ErrHandleTaken indicates another crew already owns the handle.
	ErrHandleTaken = errors.New("crew handle already taken")

	// ErrJoinCodeTaken indicates the join code already exists in the registry.
	ErrJoinCodeTaken = errors.New("join code already taken")

	// ErrAlreadyMember indicates the (crew, traveler) membership already exists.
	ErrAlreadyMember = errors.New("traveler is already a member")
)
