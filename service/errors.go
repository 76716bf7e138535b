package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned for unknown containers or files
	ErrNotFound = errors.New("not found")
	// ErrAccessDenied is returned when a name would resolve outside its container
	ErrAccessDenied = errors.New("access denied")
	// ErrUnsupportedFileType marks an upload the allow-list rejects
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrFileTooLarge marks an upload above the size cap
	ErrFileTooLarge = errors.New("file too large")
	// ErrInvalidStatus is returned for status values outside the known set
	ErrInvalidStatus = errors.New("invalid status")
)

// ValidationError lists required submission fields that were left empty
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// StorageError wraps a backend or metadata failure with the step that failed
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NotificationError wraps a failed staff email
type NotificationError struct {
	Folder string
	Err    error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Folder, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// Reason returns a machine readable reason string for err
func Reason(err error) string {
	var validation *ValidationError
	var storage *StorageError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return "validation"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidStatus):
		return "invalid_status"
	case errors.As(err, &storage):
		return "storage_" + storage.Op
	default:
		return "internal"
	}
}
