package domain

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrDuplicateAsset = errors.New("duplicate asset")
	ErrNotFound       = errors.New("asset not found")
	ErrValidation     = errors.New("validation failed")
	ErrReference      = errors.New("unresolved reference")
)

// DuplicateAssetError is returned when an add targets an id that already exists.
type DuplicateAssetError struct {
	Kind string
	ID   string
}

func (e *DuplicateAssetError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.ID)
}

func (e *DuplicateAssetError) Is(target error) bool { return target == ErrDuplicateAsset }

// NotFoundError is returned by get, update and delete on an absent id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q does not exist", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError reports a missing or malformed command field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ReferenceError reports a reference that does not resolve to a stored resource.
type ReferenceError struct {
	Field string
	Ref   Ref
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("%s references missing resource %s", e.Field, e.Ref)
}

func (e *ReferenceError) Is(target error) bool { return target == ErrReference }

func required(field string) error {
	return &ValidationError{Field: field, Reason: "is required"}
}
