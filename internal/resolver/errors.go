package resolver

import (
	"errors"
	"fmt"
)

var (
	// ErrAmbiguousConflict matches every *AmbiguousConflictError.
	ErrAmbiguousConflict = errors.New("ambiguous migration conflict")

	// ErrRenameCollision matches every *RenameCollisionError.
	ErrRenameCollision = errors.New("rename target already exists")
)

// AmbiguousConflictError is returned when an app's local chain or seed
// cannot be determined without guessing.
type AmbiguousConflictError struct {
	App    string
	Reason string
}

func (e *AmbiguousConflictError) Error() string {
	return fmt.Sprintf("cannot fix migrations for %s: %s", e.App, e.Reason)
}

func (e *AmbiguousConflictError) Is(target error) bool {
	return target == ErrAmbiguousConflict
}

// RenameCollisionError is returned when a computed file name is already
// taken by a file that is not itself being renamed.
type RenameCollisionError struct {
	App  string
	From string
	To   string
}

func (e *RenameCollisionError) Error() string {
	return fmt.Sprintf("cannot rename %s to %s in %s: target already exists", e.From, e.To, e.App)
}

func (e *RenameCollisionError) Is(target error) bool {
	return target == ErrRenameCollision
}
