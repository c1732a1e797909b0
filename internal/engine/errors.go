package engine

import (
	"errors"
	"fmt"

	"digitalcoo/internal/repo"
)

// NotFoundError reports a missing entity, or one owned by another user.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ValidationError reports malformed input on a create or update.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ConflictError reports a write against a task that changed underneath it.
type ConflictError struct {
	Entity string
	ID     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently", e.Entity, e.ID)
}

// GenerationError is returned when no social post could be generated.
type GenerationError struct {
	FileID string
	Errors map[string]string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("post generation failed for every platform of file %s", e.FileID)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// notFound translates repo.ErrNotFound; other errors pass through.
func notFound(err error, entity, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return err
}

// writeErr translates the repo sentinels of a conditional task write.
func writeErr(err error, id string) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return &NotFoundError{Entity: "task", ID: id}
	case errors.Is(err, repo.ErrConflict):
		return &ConflictError{Entity: "task", ID: id}
	}
	return err
}

func notFoundErr(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}
