package domain

import "errors"

var (
	// ErrNotFound is returned by repositories when an entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicateListing is returned when a listing with the same slug
	// already exists.
	ErrDuplicateListing = errors.New("listing already exists")

	// ErrInvalidSchedule is returned when a listing's start time plus its
	// first lot's duration is not strictly after the current instant.
	ErrInvalidSchedule = errors.New("start time plus duration must exceed current time")
)
