package core

import (
	"errors"
	"fmt"
)

var (
	// ErrFileAccess means the source path could not be opened or read.
	ErrFileAccess = errors.New("file access failed")

	// ErrFileTooLarge means the source exceeded the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrMalformed matches every *LineError.
	ErrMalformed = errors.New("malformed input")

	// ErrPersist wraps store failures during the batch insert.
	ErrPersist = errors.New("persist failed")

	// ErrImportNotFound is returned when rolling back an unknown import.
	ErrImportNotFound = errors.New("import not found")

	// ErrAlreadyRolledBack is returned when rolling back an import twice.
	ErrAlreadyRolledBack = errors.New("import already rolled back")
)

// LineErrorKind classifies why a line was rejected.
type LineErrorKind int

const (
	KindFieldCount LineErrorKind = iota
	KindInvalidDate
	KindInvalidNumber
	KindEmptyCode
	KindLineTooLong
)

func (k LineErrorKind) String() string {
	switch k {
	case KindFieldCount:
		return "field count"
	case KindInvalidDate:
		return "invalid date"
	case KindInvalidNumber:
		return "invalid number"
	case KindEmptyCode:
		return "empty code"
	case KindLineTooLong:
		return "line too long"
	default:
		return "unknown"
	}
}

// LineError describes one rejected input line.
type LineError struct {
	Line    int // 1-indexed
	Kind    LineErrorKind
	Field   string // "date", "value" or "code"; empty for whole-line errors
	Value   string // The offending raw value
	Message string
}

func (e *LineError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Is makes every LineError match ErrMalformed.
func (e *LineError) Is(target error) bool {
	return target == ErrMalformed
}
