package assistant

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineUnavailable marks persistence and lookup failures. Callers may
	// retry these; every other outcome is a usable response.
	ErrEngineUnavailable = errors.New("assistant engine unavailable")

	ErrMissingActor       = errors.New("actor id is required")
	ErrSuggestionNotFound = errors.New("suggestion not found")
	ErrCategoryNotFound   = errors.New("category not found")
)

type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrEngineUnavailable, e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrEngineUnavailable
}

func unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}
