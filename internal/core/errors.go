package core

import (
	"errors"
	"fmt"
)

// ValidationError reports user input that fails a domain constraint.
// The conversation stays in (or returns to) the step that asked for it.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation: %s: %v", e.Message, e.Err)
	}
	return "validation: " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError reports text that matches no live category or pending target.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return "not found: " + e.Message }

// PreconditionError reports an action attempted outside the mode it needs.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string { return "precondition: " + e.Message }

// UserMessage extracts the text meant for the user from one of the domain
// errors above.
func UserMessage(err error) (string, bool) {
	var (
		verr *ValidationError
		nerr *NotFoundError
		perr *PreconditionError
	)
	switch {
	case errors.As(err, &verr):
		return verr.Message, true
	case errors.As(err, &nerr):
		return nerr.Message, true
	case errors.As(err, &perr):
		return perr.Message, true
	}
	return "", false
}
