package store

import "fmt"

type constError string

func (e constError) Error() string { return string(e) }

const (
	// ErrNotFound is returned when an id is not resident.
	ErrNotFound = constError("object not found")
	// ErrExists is returned by Insert when the id is already resident.
	ErrExists = constError("object already exists")
	// ErrLinked is returned by Remove when the object is still threaded
	// into an ordering list; removing it would corrupt that list.
	ErrLinked = constError("object still linked")
	// ErrEmpty is returned when a victim is requested from an empty policy.
	ErrEmpty = constError("nothing to evict")
)

func notFound(id uint64) error { return fmt.Errorf("%w: id %d", ErrNotFound, id) }
