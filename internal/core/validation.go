package core

// validation.go checks a single input line and builds its Record.
//
// A line is valid when it splits on TAB into exactly FieldCount fields, the
// first is a YYYY-MM-DD date, the second a number and the third a non-empty
// code. The first failing check is reported.

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Delimiter separates the fields of an input line.
const Delimiter = "\t"

// ParseLine validates one raw line and converts it to a Record.
// lineNum is 1-indexed and only used for error reporting.
func ParseLine(lineNum int, line string, importID uuid.UUID) (Record, *LineError) {
	fields := strings.Split(strings.TrimSuffix(line, "\r"), Delimiter)
	if len(fields) != FieldCount {
		return Record{}, &LineError{
			Line:    lineNum,
			Kind:    KindFieldCount,
			Value:   line,
			Message: fmt.Sprintf("expected %d columns, got %d", FieldCount, len(fields)),
		}
	}

	rawDate := CleanField(fields[0])
	date, ok := ParseDate(rawDate)
	if !ok {
		return Record{}, &LineError{
			Line:    lineNum,
			Kind:    KindInvalidDate,
			Field:   "date",
			Value:   rawDate,
			Message: fmt.Sprintf("invalid date %q (use YYYY-MM-DD)", rawDate),
		}
	}

	rawValue := CleanField(fields[1])
	value, ok := ToDecimal(rawValue)
	if !ok {
		return Record{}, &LineError{
			Line:    lineNum,
			Kind:    KindInvalidNumber,
			Field:   "value",
			Value:   rawValue,
			Message: fmt.Sprintf("invalid number %q", rawValue),
		}
	}

	code := CleanField(fields[2])
	if code == "" {
		return Record{}, &LineError{
			Line:    lineNum,
			Kind:    KindEmptyCode,
			Field:   "code",
			Message: "required field is empty",
		}
	}

	return Record{
		ImportID: importID,
		Date:     date,
		Value:    value,
		Code:     code,
	}, nil
}
