package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/pxflux/internal/plan"
)

// ErrorCode categorizes operation failures.
type ErrorCode string

const (
	// ErrCodeStore indicates a tree write, merge or remove failed.
	ErrCodeStore ErrorCode = "STORE_FAILED"

	// ErrCodeBlob indicates a blob deletion failed.
	ErrCodeBlob ErrorCode = "BLOB_FAILED"

	// ErrCodeInvalid indicates the operation itself is malformed.
	ErrCodeInvalid ErrorCode = "INVALID_OPERATION"
)

// ErrInvalidPlan is returned by Run when a plan writes the same location
// twice or overlapping locations.
var ErrInvalidPlan = errors.New("invalid plan")

// OpError describes one failed operation.
type OpError struct {
	Code     ErrorCode
	Op       plan.Operation
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("%s: %s after %d attempts: %v", e.Code, e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

// Unwrap returns the underlying collaborator error.
func (e *OpError) Unwrap() error {
	return e.Err
}

// IsCritical reports whether err is a failed critical operation.
// Uses errors.As to handle wrapped errors.
func IsCritical(err error) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Op.Critical
	}
	return false
}

// IsBlobError reports whether err is a failed blob deletion.
func IsBlobError(err error) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code == ErrCodeBlob
	}
	return false
}
