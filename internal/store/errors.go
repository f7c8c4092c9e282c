package store

import "fmt"

// NotFoundError indicates that a record (or an entire collection) does not
// exist. Handlers map it to 404.
type NotFoundError struct {
	Type string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: not found", e.Type)
	}
	return fmt.Sprintf("%s/%s: not found", e.Type, e.ID)
}

// ConflictError indicates that a create collided with an existing id.
// Handlers map it to 409.
type ConflictError struct {
	Type string
	ID   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s/%s: already exists", e.Type, e.ID)
}

// ValidationError indicates malformed or out-of-range caller input.
// Handlers map it to 400.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}
