package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jipraks/kasirgratisan/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	DB      string
	Backend string
	Config  config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

var validBackends = []string{config.BackendSQLite, config.BackendPostgres, config.BackendMemory}

// NewRootCommand creates the kasir command tree over cfg.
func NewRootCommand(cfg config.Config) *cobra.Command {
	return newRootCommand(&RootOptions{Config: cfg})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kasir",
		Short: "kasirgratisan - local-first cashier ledger",
		Long:  "Record stock receipts, sales and write-offs for a single shop, keep unit costs as a weighted average and move the whole ledger in and out of backup files.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if !slices.Contains(validBackends, opts.Backend) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid backend %q: must be one of %v", opts.Backend, validBackends))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", opts.Config.DBPath, "SQLite ledger file")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", opts.Config.ResolvedBackend(), "storage backend (sqlite|postgres|memory)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewProductsCommand(opts))
	cmd.AddCommand(NewReceiveCommand(opts))
	cmd.AddCommand(NewStockOutCommand(opts))
	cmd.AddCommand(NewSellCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// Execute runs the command line against the process environment and
// returns the exit code.
func Execute(ctx context.Context) int {
	opts := &RootOptions{Config: config.Load()}
	cmd := newRootCommand(opts)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	out := &OutputFormatter{Format: opts.Format, Writer: os.Stderr, Verbose: opts.Verbose}
	if out.Format != "json" {
		out.Format = "text"
	}
	_ = out.Error(errorCode(err), err.Error(), nil)
	return GetExitCode(err)
}
