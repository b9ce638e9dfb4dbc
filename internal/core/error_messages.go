package core

// error_messages.go maps technical errors to user-friendly messages with
// codes for support reference.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File not found or unreadable
//	FILE002 - File too large
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date (must be YYYY-MM-DD)
//	VAL002 - Invalid number
//	VAL003 - Empty code
//	VAL004 - Wrong column count (must be date, value, code separated by tabs)
//	VAL005 - Line too long
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - System busy: too many imports in progress
//	IMP002 - Import not found (rollback)
//	IMP003 - Import already rolled back
//	IMP004 - Import cancelled
//	IMP005 - Import timed out
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Connection refused
//	DB002 - Connection reset
//	DB003 - Database locked or deadlocked
//	DB004 - Database write failed
//
// # Default Error (ERR000)
//
// Typed errors are matched with errors.Is/As first; anything else falls back
// to case-insensitive substring patterns, where the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgFileAccess   = UserMessage{"File not found or unreadable", "Check the path and file permissions", "FILE001"}
	msgFileTooLarge = UserMessage{"File exceeds the maximum size limit", "Split the file into smaller chunks", "FILE002"}
	msgBadDate      = UserMessage{"Invalid date format detected", "Use YYYY-MM-DD, e.g. 2023-10-29", "VAL001"}
	msgBadNumber    = UserMessage{"Invalid number format detected", "Use plain decimal numbers without currency symbols or separators", "VAL002"}
	msgEmptyCode    = UserMessage{"Code field is empty", "Ensure every line has a code in the third column", "VAL003"}
	msgFieldCount   = UserMessage{"Wrong number of columns", "Each line must be date, value and code separated by tabs", "VAL004"}
	msgLineTooLong  = UserMessage{"Line is too long", "Check that the file uses newline line endings and tab-separated columns", "VAL005"}
	msgBusy         = UserMessage{"Too many imports in progress", "Please wait a moment and try again", "IMP001"}
	msgNotFound     = UserMessage{"Import not found", "Check the import ID with the history command", "IMP002"}
	msgRolledBack   = UserMessage{"Import was already rolled back", "No action needed", "IMP003"}
	msgCancelled    = UserMessage{"Import was cancelled", "Start the import again when ready", "IMP004"}
	msgTimeout      = UserMessage{"Import timed out", "Try a smaller file or raise IMPORT_TIMEOUT", "IMP005"}
	msgPersist      = UserMessage{"Database write failed", "Nothing was imported; please try again", "DB004"}
)

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// errorPattern defines a substring to match and its corresponding message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns covers driver errors that carry no typed sentinel.
// Order matters: more specific patterns come first.
var errorPatterns = []errorPattern{
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB001"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB002"}},
	{"database is locked", UserMessage{"Database is busy", "Please try again", "DB003"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB003"}},
	{"no such file", msgFileAccess},
	{"invalid date", msgBadDate},
	{"invalid number", msgBadNumber},
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var lineErr *LineError
	if errors.As(err, &lineErr) {
		switch lineErr.Kind {
		case KindFieldCount:
			return msgFieldCount
		case KindInvalidDate:
			return msgBadDate
		case KindInvalidNumber:
			return msgBadNumber
		case KindEmptyCode:
			return msgEmptyCode
		case KindLineTooLong:
			return msgLineTooLong
		}
	}

	switch {
	case errors.Is(err, ErrFileTooLarge):
		return msgFileTooLarge
	case errors.Is(err, ErrFileAccess):
		return msgFileAccess
	case errors.Is(err, ErrTooManyImports):
		return msgBusy
	case errors.Is(err, ErrImportNotFound):
		return msgNotFound
	case errors.Is(err, ErrAlreadyRolledBack):
		return msgRolledBack
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if errors.Is(err, ErrPersist) {
		return msgPersist
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
