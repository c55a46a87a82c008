package feed

import (
	"errors"
	"fmt"
)

// ErrSuperseded is returned when a write is guarded by a refresh generation
// that is no longer current.
var ErrSuperseded = errors.New("superseded by a newer refresh")

type EntityNotFoundError struct {
	Ref Ref
}

func (err EntityNotFoundError) Error() string {
	return fmt.Sprintf("%s with id %q not found", err.Ref.Kind, err.Ref.ID)
}

type InvalidKindError struct {
	Kind Kind
}

func (err InvalidKindError) Error() string {
	return fmt.Sprintf("invalid entity kind: %q", err.Kind)
}

// ValidationError describes content rejected before any remote call.
type ValidationError struct {
	Field string
	Rule  string
	Limit string
}

func (err ValidationError) Error() string {
	switch err.Rule {
	case "notblank", "required":
		return fmt.Sprintf("%s cannot be empty", err.Field)
	case "max":
		return fmt.Sprintf("%s cannot be longer than %s characters", err.Field, err.Limit)
	default:
		return fmt.Sprintf("%s is invalid (%s)", err.Field, err.Rule)
	}
}
