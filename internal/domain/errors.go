package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden: only the author may modify this venue")
	ErrConflict   = errors.New("conflict")
	ErrTimeout    = errors.New("operation timed out")
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateSlug is returned by stores when the unique slug index rejects a write.
	ErrDuplicateSlug = fmt.Errorf("%w: duplicate slug", ErrConflict)
)

// ValidationError lists the fields that failed, keyed by field path
// (e.g. "location.longitude").
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := e.FieldNames()
	return "validation failed: " + strings.Join(names, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (e *ValidationError) Has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}

// StorageError is an unexpected failure of the underlying store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage: " + e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }
