package model

import "fmt"

// ValidationError reports malformed caller input. It is never retried and
// nothing has been computed or written when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DataAccessError reports that the route snapshot could not be read in full.
// Computations abort rather than run on a partial fleet.
type DataAccessError struct {
	Op  string
	Err error
}

func (e *DataAccessError) Error() string { return fmt.Sprintf("data access: %s: %v", e.Op, e.Err) }
func (e *DataAccessError) Unwrap() error { return e.Err }

// StorageError reports a failed scenario write. The computed result is still
// valid and may be persisted again later.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }
