package main

import (
	"context"
	"fmt"
	"io"

	"github.com/JonMunkholm/statimport/internal/core"
	"github.com/spf13/cobra"
)

// maxListedFailures caps how many line errors are printed per file.
const maxListedFailures = 10

func newImportCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import one or more files, each as a single batch",
		Long: `Import reads every line of each FILE before writing anything. A file with
a single malformed line is discarded completely. Use "-" to read standard input.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *core.Service) error {
				results := importAll(ctx, svc, args, cmd.InOrStdin())
				failed := printResults(cmd.OutOrStdout(), results, "imported")
				if strict && failed > 0 {
					return codeError(2, "%d of %d imports failed", failed, len(results))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with status 2 if any file is not imported")
	return cmd
}

// importAll imports paths in parallel and standard input (at most once) on
// the calling goroutine. Results keep the order of paths.
func importAll(ctx context.Context, svc *core.Service, paths []string, stdin io.Reader) []*core.ImportResult {
	results := make([]*core.ImportResult, len(paths))

	var files []string
	var fileIdx []int
	stdinUsed := false

	for i, path := range paths {
		if path != core.StdinSource {
			files = append(files, path)
			fileIdx = append(fileIdx, i)
			continue
		}
		if stdinUsed {
			results[i] = &core.ImportResult{
				Source: path,
				Err:    fmt.Errorf("%w: standard input given more than once", core.ErrFileAccess),
			}
			continue
		}
		stdinUsed = true
		result, err := svc.ImportReader(ctx, core.StdinSource, stdin)
		if result == nil {
			result = &core.ImportResult{Source: path, Err: err}
		}
		results[i] = result
	}

	for j, result := range svc.ImportFiles(ctx, files) {
		results[fileIdx[j]] = result
	}
	return results
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check files without writing anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *core.Service) error {
				results := make([]*core.ImportResult, len(args))
				for i, path := range args {
					result, err := svc.Validate(ctx, path)
					if result == nil {
						result = &core.ImportResult{Source: path, Err: err}
					}
					results[i] = result
				}
				if failed := printResults(cmd.OutOrStdout(), results, "valid"); failed > 0 {
					return codeError(2, "%d of %d files invalid", failed, len(results))
				}
				return nil
			})
		},
	}
}

// printResults writes one line per result plus the first line errors of a
// rejected file, and returns the number of failures.
func printResults(w io.Writer, results []*core.ImportResult, okVerb string) int {
	failed := 0
	for _, r := range results {
		if r.Err == nil {
			fmt.Fprintf(w, "ok\t%s\t%s %d lines", r.Source, okVerb, r.TotalLines)
			if r.Inserted > 0 {
				fmt.Fprintf(w, "\timport %s", r.ImportID)
			}
			fmt.Fprintln(w)
			continue
		}

		failed++
		fmt.Fprintf(w, "FAIL\t%s\t%s\n", r.Source, describe(r.Err))
		for i, f := range r.Failures {
			if i == maxListedFailures {
				fmt.Fprintf(w, "\t... %d more\n", len(r.Failures)-maxListedFailures)
				break
			}
			fmt.Fprintf(w, "\t%s\n", f.Error())
		}
	}
	return failed
}

// describe prefers the user-facing message and falls back to the raw error.
func describe(err error) string {
	if core.IsUserFacing(err) {
		return core.FormatUserError(err)
	}
	return err.Error()
}

func newListCmd() *cobra.Command {
	var countOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every stored record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *core.Service) error {
				if countOnly {
					n, err := svc.Count(ctx)
					if err != nil {
						return codeError(1, "%s", describe(err))
					}
					fmt.Fprintln(cmd.OutOrStdout(), n)
					return nil
				}

				records, err := svc.Records(ctx)
				if err != nil {
					return codeError(1, "%s", describe(err))
				}
				w := cmd.OutOrStdout()
				for _, r := range records {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Date.Format(core.DateLayout), r.Value, r.Code, r.ImportID)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&countOnly, "count", false, "Print only the number of records")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print committed imports, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *core.Service) error {
				entries, err := svc.History(ctx)
				if err != nil {
					return codeError(1, "%s", describe(err))
				}
				w := cmd.OutOrStdout()
				for _, e := range entries {
					status := "active"
					if e.RolledBack {
						status = "rolled back"
					}
					fmt.Fprintf(w, "%s\t%s\t%d rows\t%s\t%s\n",
						e.ID, e.ImportedAt.Format("2006-01-02 15:04:05"), e.Rows, status, e.Source)
				}
				return nil
			})
		},
	}
}

func newRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback IMPORT_ID",
		Short: "Delete every record written by one import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *core.Service) error {
				result, err := svc.Rollback(ctx, args[0])
				if err != nil {
					return codeError(1, "%s", describe(err))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s: %d records deleted\n", result.ImportID, result.RowsDeleted)
				return nil
			})
		},
	}
}

func newResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all records and import history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return codeError(3, "reset deletes all data; pass --yes to confirm")
			}
			return withService(cmd, func(ctx context.Context, svc *core.Service) error {
				if err := svc.Reset(ctx); err != nil {
					return codeError(1, "%s", describe(err))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "all records deleted")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting all data")
	return cmd
}
