// Package core provides the import processor for tab-delimited statistics.
//
// This package contains all domain logic independent of any storage engine
// or CLI. Persistence is reached only through the [Store] interface, so the
// same code runs against PostgreSQL, SQLite or an in-memory store.
//
// # Input Format
//
// One record per line, three TAB-separated fields:
//
//	2023-10-29	100	AB1234
//
// The date must be YYYY-MM-DD, the value a plain decimal number and the code
// any non-empty token.
//
// # All-or-Nothing Imports
//
// An import reads every line before writing anything. If a single line has
// the wrong number of fields or an unparseable date or number, the whole file
// is discarded. Otherwise all records are written by one [Store.InsertBatch]
// call, which stores perform in a single transaction.
//
// Two entry points share the pipeline:
//
//   - [Service.ImportData] never reports failure; a bad file is a logged no-op.
//   - [Service.Import] returns the same outcome plus a classified error
//     ([ErrFileAccess], [ErrFileTooLarge], [ErrMalformed], [ErrPersist]).
//
// Importing the same file twice writes two batches; there is no
// deduplication. A committed batch can be undone with [Service.Rollback].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has a code for support reference (FILE, VAL, IMP, DB).
package core
