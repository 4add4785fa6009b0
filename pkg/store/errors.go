package store

import (
	"errors"
	"fmt"
)

// ErrClosed reports an operation on a closed store.
var ErrClosed = errors.New("store is closed")

// NotFoundError reports a missing job record.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("job record %q not found", e.ID)
}

// AlreadyExistsError reports a Create colliding with an existing record.
type AlreadyExistsError struct {
	ID string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("job record %q already exists", e.ID)
}

// InvalidInputError reports a malformed argument.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
