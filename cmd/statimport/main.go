package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JonMunkholm/statimport/internal/config"
	"github.com/JonMunkholm/statimport/internal/core"
	"github.com/JonMunkholm/statimport/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// drainTimeout bounds how long shutdown waits for in-flight imports.
const drainTimeout = 30 * time.Second

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err == nil {
		slog.Debug("loaded .env file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "statimport",
		Short:         "Import tab-delimited statistics into a database",
		Long:          "statimport loads date<TAB>value<TAB>code files into PostgreSQL, SQLite or memory. Each file is imported all-or-nothing.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newImportCmd(),
		newValidateCmd(),
		newListCmd(),
		newHistoryCmd(),
		newRollbackCmd(),
		newResetCmd(),
	)
	return root
}

// withService loads configuration, opens the configured store and runs fn
// with a Service over it. In-flight imports are drained before the store
// closes.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *core.Service) error) error {
	cfg, err := config.Load()
	if err != nil {
		return codeError(3, "%s", err)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return codeError(4, "open store: %s", describe(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close store", "error", err)
		}
	}()

	svc := core.NewService(store, core.Options{
		MaxFileSize:   cfg.Import.MaxFileSize,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWaitTime:   cfg.Import.MaxWaitTime,
		Timeout:       cfg.Import.Timeout,
	})

	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := svc.WaitForImports(drainCtx); err != nil {
			slog.Warn("imports still running at shutdown", "active", svc.LimiterStatus().Active)
		}
	}()

	return fn(ctx, svc)
}
