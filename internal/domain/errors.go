package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("rate periods changed since preview")
	ErrStorage    = errors.New("storage failure")
)

type FieldProblem struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError is a malformed candidate. The caller fixes input and retries.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+": "+p.Reason)
	}
	return "invalid rate period: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError means the group changed between preview and commit in a way
// that alters the resolution plan. Nothing was written.
type ConflictError struct {
	Group    GroupKey
	Expected string // token the caller previewed
	Actual   string // token computed inside the commit
	Affected []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("rate periods for %s changed since preview (expected %s, got %s)", e.Group, e.Expected, e.Actual)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// StorageError wraps a transaction/connection failure. The whole commit was
// rolled back.
type StorageError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// IsRetryable reports whether err is a storage error worth retrying.
func IsRetryable(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Retryable
}
