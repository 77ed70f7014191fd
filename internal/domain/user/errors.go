package user

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("user not found")
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrReferencedEntity     = errors.New("entity is referenced by another record")
	ErrDuplicateValue       = errors.New("duplicate value")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidFieldType     = errors.New("invalid field type")
	ErrInternalStorage      = errors.New("internal storage error")
	ErrPasswordHash         = errors.New("password hashing failed")

	ErrInvalidDate = errors.New("invalid birth date")
	ErrFutureDate  = errors.New("birth date cannot be in the future")
)

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("user with id %s not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type DuplicateEmailError struct {
	Email string
}

func (e *DuplicateEmailError) Error() string {
	return fmt.Sprintf("email %s is already registered", e.Email)
}

func (e *DuplicateEmailError) Unwrap() error { return ErrDuplicateEmail }

// ColumnError carries the column-level detail of a classified storage failure.
// Kind is one of ErrDuplicateValue, ErrMissingRequiredField or ErrInvalidFieldType.
type ColumnError struct {
	Kind         error
	Field        string
	Value        string
	ExpectedType string
}

func (e *ColumnError) Error() string {
	switch e.Kind {
	case ErrDuplicateValue:
		return fmt.Sprintf("value '%s' for field '%s' is already in use", e.Value, e.Field)
	case ErrMissingRequiredField:
		return fmt.Sprintf("field '%s' is required and cannot be null", e.Field)
	case ErrInvalidFieldType:
		return fmt.Sprintf("field '%s' must be of type %s", e.Field, e.ExpectedType)
	default:
		return fmt.Sprintf("%v: %s", e.Kind, e.Field)
	}
}

func (e *ColumnError) Unwrap() error { return e.Kind }

// StorageError is an unclassified storage failure. Err keeps the full detail
// for server-side logs.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrInternalStorage, e.Err} }

// IsDomain reports whether err is already one of the classified kinds above.
func IsDomain(err error) bool {
	for _, kind := range []error{
		ErrNotFound,
		ErrDuplicateEmail,
		ErrReferencedEntity,
		ErrDuplicateValue,
		ErrMissingRequiredField,
		ErrInvalidFieldType,
		ErrInternalStorage,
		ErrPasswordHash,
		ErrInvalidDate,
		ErrFutureDate,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
