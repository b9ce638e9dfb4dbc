package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/JonMunkholm/statimport/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// StdinSource is the source name used for imports read from standard input.
const StdinSource = "-"

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	MaxFileSize   int64         // 0 disables the limit
	MaxConcurrent int           // Parallel imports allowed
	MaxWaitTime   time.Duration // Wait for an import slot
	Timeout       time.Duration // Per-import deadline; 0 means none
}

// Service is the import processor: it reads a source, validates every line
// and persists the resulting records as one all-or-nothing batch.
type Service struct {
	store   Store
	limiter *ImportLimiter
	opts    Options
	now     func() time.Time
}

// NewService creates a Service over the given store.
func NewService(store Store, opts Options) *Service {
	return &Service{
		store:   store,
		limiter: NewImportLimiter(opts.MaxConcurrent, opts.MaxWaitTime),
		opts:    opts,
		now:     time.Now,
	}
}

// ImportData imports the file at path and never reports failure: a missing
// file, an empty file or any malformed line all result in nothing being
// persisted. Use Import to learn what happened.
func (s *Service) ImportData(ctx context.Context, path string) {
	result, err := s.Import(ctx, path)
	if err != nil {
		logger := logging.WithFields(ctx, "source", path)
		if result != nil {
			logger = logger.With("import_id", result.ImportID.String())
		}
		logger.Warn("import discarded", "error", err)
	}
}

// Import imports the file at path as a single batch.
//
// On success every line of the file is persisted. On any error nothing is:
// the returned error wraps ErrFileAccess, ErrFileTooLarge, ErrMalformed
// (with the first *LineError), ErrPersist or a context error. The result is
// non-nil whenever a file was at least opened.
func (s *Service) Import(ctx context.Context, path string) (*ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileAccess, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileAccess, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileAccess, path)
	}
	if s.opts.MaxFileSize > 0 && info.Size() > s.opts.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, info.Size(), s.opts.MaxFileSize)
	}

	return s.ImportReader(ctx, path, f)
}

// ImportReader runs the import pipeline over r. source names the input in
// logs and in the import history.
func (s *Service) ImportReader(ctx context.Context, source string, r io.Reader) (*ImportResult, error) {
	return s.run(ctx, source, r, true)
}

// Validate checks the file at path without persisting anything.
// The result reports every malformed line.
func (s *Service) Validate(ctx context.Context, path string) (*ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileAccess, err)
	}
	defer f.Close()

	return s.run(ctx, path, f, false)
}

// ImportFiles imports each path as its own independent batch, running up to
// the limiter's capacity in parallel. Results are returned in input order;
// a failed file never affects the others.
func (s *Service) ImportFiles(ctx context.Context, paths []string) []*ImportResult {
	results := make([]*ImportResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limiter.MaxConcurrent())

	for i, path := range paths {
		g.Go(func() error {
			result, err := s.Import(gctx, path)
			if result == nil {
				result = &ImportResult{Source: path}
			}
			if err != nil {
				result.Err = err
			}
			results[i] = result
			// Per-file failures are reported in results, not through the group.
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Service) run(ctx context.Context, source string, r io.Reader, persist bool) (*ImportResult, error) {
	start := s.now()
	result := &ImportResult{
		ImportID: uuid.New(),
		Source:   source,
	}

	ctx = logging.ContextWithImportID(ctx, result.ImportID.String())
	logger := logging.WithFields(ctx, "source", source)

	if err := s.limiter.Acquire(ctx); err != nil {
		return s.fail(result, start, err)
	}
	defer s.limiter.Release()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	logger.Debug("import started")

	var records []Record
	lines, err := scanLines(ctx, NewCountingReader(r, s.opts.MaxFileSize), func(lineNum int, line string) {
		rec, lineErr := ParseLine(lineNum, line, result.ImportID)
		if lineErr != nil {
			result.Failures = append(result.Failures, *lineErr)
			return
		}
		if len(result.Failures) == 0 {
			records = append(records, rec)
		}
	})
	result.TotalLines = lines

	switch {
	case errors.Is(err, ErrFileTooLarge):
		return s.fail(result, start, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, s.opts.MaxFileSize))
	case ctx.Err() != nil:
		return s.fail(result, start, ctx.Err())
	case errors.Is(err, bufio.ErrTooLong):
		// Scanning stops at the oversized line; it counts as one more line.
		lines++
		result.TotalLines = lines
		result.Failures = append(result.Failures, LineError{
			Line:    lines,
			Kind:    KindLineTooLong,
			Message: fmt.Sprintf("line exceeds %d bytes", MaxLineSize),
		})
	case err != nil:
		return s.fail(result, start, fmt.Errorf("%w: read %s: %w", ErrFileAccess, source, err))
	}

	if len(result.Failures) > 0 {
		first := result.Failures[0]
		logger.Info("import rejected",
			"lines", lines,
			"invalid_lines", len(result.Failures),
			"first_error", first.Error(),
		)
		return s.fail(result, start, fmt.Errorf("%w: %d of %d lines invalid: %w",
			ErrMalformed, len(result.Failures), lines, &first))
	}

	if lines == 0 || !persist {
		result.Duration = s.now().Sub(start)
		logger.Debug("import finished without writing", "lines", lines, "persist", persist)
		return result, nil
	}

	entry := ImportEntry{
		ID:         result.ImportID,
		Source:     source,
		Rows:       len(records),
		ImportedAt: s.now().UTC(),
	}
	if err := s.store.InsertBatch(ctx, entry, records); err != nil {
		logger.Error("import batch insert failed", "rows", len(records), "error", err)
		return s.fail(result, start, fmt.Errorf("%w: %w", ErrPersist, err))
	}

	result.Inserted = len(records)
	result.Duration = s.now().Sub(start)
	logger.Info("import committed", "rows", result.Inserted, "duration", result.Duration)

	return result, nil
}

func (s *Service) fail(result *ImportResult, start time.Time, err error) (*ImportResult, error) {
	result.Inserted = 0
	result.Err = err
	result.Duration = s.now().Sub(start)
	return result, err
}

// Records returns every persisted record.
func (s *Service) Records(ctx context.Context) ([]Record, error) {
	return s.store.Records(ctx)
}

// Count returns the number of persisted records.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

// History returns every committed import, oldest first.
func (s *Service) History(ctx context.Context) ([]ImportEntry, error) {
	return s.store.Imports(ctx)
}

// Rollback deletes every record written by one import.
func (s *Service) Rollback(ctx context.Context, importID string) (RollbackResult, error) {
	result := RollbackResult{ImportID: importID}

	id, err := uuid.Parse(importID)
	if err != nil {
		result.Error = fmt.Sprintf("invalid import ID: %v", err)
		return result, fmt.Errorf("invalid import ID: %w", err)
	}

	deleted, err := s.store.DeleteImport(ctx, id)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("rollback %s: %w", importID, err)
	}

	result.RowsDeleted = deleted
	result.Success = true
	logging.WithFields(logging.ContextWithImportID(ctx, importID)).
		Info("import rolled back", "rows", deleted)

	return result, nil
}

// Reset deletes all records and import history.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	logging.FromContext(ctx).Warn("store reset")
	return nil
}

// LimiterStatus reports current import concurrency.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until in-flight imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
