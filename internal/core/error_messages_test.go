package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil error returns empty", err: nil, wantCode: ""},
		{name: "file access", err: fmt.Errorf("%w: open x: no such file or directory", ErrFileAccess), wantCode: "FILE001"},
		{name: "file too large", err: fmt.Errorf("%w: exceeds 10 bytes", ErrFileTooLarge), wantCode: "FILE002"},
		{name: "bad date line", err: fmt.Errorf("%w: %w", ErrMalformed, &LineError{Line: 2, Kind: KindInvalidDate}), wantCode: "VAL001"},
		{name: "bad number line", err: &LineError{Line: 1, Kind: KindInvalidNumber}, wantCode: "VAL002"},
		{name: "empty code line", err: &LineError{Line: 1, Kind: KindEmptyCode}, wantCode: "VAL003"},
		{name: "field count line", err: &LineError{Line: 1, Kind: KindFieldCount}, wantCode: "VAL004"},
		{name: "line too long", err: &LineError{Line: 1, Kind: KindLineTooLong}, wantCode: "VAL005"},
		{name: "limiter busy", err: ErrTooManyImports, wantCode: "IMP001"},
		{name: "rollback unknown import", err: fmt.Errorf("rollback x: %w", ErrImportNotFound), wantCode: "IMP002"},
		{name: "rollback twice", err: fmt.Errorf("rollback x: %w", ErrAlreadyRolledBack), wantCode: "IMP003"},
		{name: "cancelled", err: context.Canceled, wantCode: "IMP004"},
		{name: "timed out", err: context.DeadlineExceeded, wantCode: "IMP005"},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), wantCode: "DB001"},
		{name: "sqlite locked inside persist", err: fmt.Errorf("%w: database is locked", ErrPersist), wantCode: "DB003"},
		{name: "case insensitive matching", err: errors.New("ERROR: DEADLOCK detected"), wantCode: "DB003"},
		{name: "generic persist failure", err: fmt.Errorf("%w: disk full", ErrPersist), wantCode: "DB004"},
		{name: "unknown error returns default", err: errors.New("some random internal error"), wantCode: "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && got.Message == "" {
				t.Error("MapError() returned empty message")
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrTooManyImports)
	want := "Too many imports in progress (Code: IMP001). Please wait a moment and try again"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error is not user facing", err: nil, want: false},
		{name: "known error is user facing", err: ErrFileTooLarge, want: true},
		{name: "unknown error is not user facing", err: errors.New("random internal error xyz"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
