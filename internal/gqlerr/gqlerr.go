// Package gqlerr defines the error taxonomy shared by schema compilation and
// request resolution: build errors abort compilation, validation and remap
// errors surface as GraphQL error entries for the affected field while sibling
// fields still resolve.
package gqlerr

import "fmt"

// BuildError reports invalid schema metadata or compile options. Build errors
// are fatal: compilation stops at the first occurrence and startup aborts.
type BuildError struct {
	Message string
}

func (e *BuildError) Error() string { return e.Message }

// Buildf constructs a BuildError from a format string.
func Buildf(format string, args ...interface{}) *BuildError {
	return &BuildError{Message: fmt.Sprintf(format, args...)}
}

// ValidationError reports a malformed filter, order, or mutation input
// argument.
type ValidationError struct {
	Message  string
	Argument string
}

func (e *ValidationError) Error() string { return e.Message }

// Extensions marks the error with a stable machine-readable code in the
// GraphQL response.
func (e *ValidationError) Extensions() map[string]interface{} {
	ext := map[string]interface{}{
		"code": "validation_failed",
	}
	if e.Argument != "" {
		ext["argument"] = e.Argument
	}
	return ext
}

// Validationf constructs a ValidationError for the named argument.
func Validationf(argument, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Message:  fmt.Sprintf(format, args...),
		Argument: argument,
	}
}

// Remap directions.
const (
	RemapToWire   = "to_wire"
	RemapFromWire = "from_wire"
)

// RemapError reports a value that failed wire/storage conversion for a column.
type RemapError struct {
	Column    string
	Direction string
	Reason    string
}

func (e *RemapError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("value remap failed (%s): %s", e.Direction, e.Reason)
	}
	return fmt.Sprintf("value remap failed for column %q (%s): %s", e.Column, e.Direction, e.Reason)
}

// Extensions marks the error with a stable machine-readable code in the
// GraphQL response.
func (e *RemapError) Extensions() map[string]interface{} {
	ext := map[string]interface{}{
		"code":      "remap_failed",
		"direction": e.Direction,
	}
	if e.Column != "" {
		ext["column"] = e.Column
	}
	return ext
}

// Remapf constructs a RemapError for the named column and direction.
func Remapf(column, direction, format string, args ...interface{}) *RemapError {
	return &RemapError{
		Column:    column,
		Direction: direction,
		Reason:    fmt.Sprintf(format, args...),
	}
}

// Storage error codes backends attach when the database rejects an operation
// for a recognizable reason.
const (
	CodeUniqueViolation     = "unique_violation"
	CodeForeignKeyViolation = "foreign_key_violation"
	CodeNotNullViolation    = "not_null_violation"
	CodeAccessDenied        = "access_denied"
)

// StorageError annotates a database error with a stable machine-readable code
// while keeping the original error reachable through Unwrap.
type StorageError struct {
	Code    string
	Message string
	Cause   error
}

func (e *StorageError) Error() string { return e.Message }

func (e *StorageError) Unwrap() error { return e.Cause }

// Extensions marks the error with its storage code in the GraphQL response.
func (e *StorageError) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code": e.Code,
	}
}

// Storagef wraps cause under a storage code.
func Storagef(code string, cause error, format string, args ...interface{}) *StorageError {
	return &StorageError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}
