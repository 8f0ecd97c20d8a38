package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jipraks/kasirgratisan/internal/migrate"
	"github.com/jipraks/kasirgratisan/internal/seed"
)

type MigrateOptions struct {
	*RootOptions
	Demo bool
}

type migrateResult struct {
	SchemaVersion int  `json:"schemaVersion"`
	DemoSeeded    bool `json:"demoSeeded"`
}

func (r migrateResult) renderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Skema ledger versi %d\n", r.SchemaVersion)
	if err == nil && r.DemoSeeded {
		_, err = fmt.Fprintln(w, "Data contoh ditambahkan")
	}
	return err
}

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the ledger to the current schema",
		Long: `Bring the ledger to the current schema and seed the default categories,
payment methods and store settings into an empty ledger.

Every other command does this on open; migrate only reports it.

Examples:
  kasir migrate
  kasir migrate --demo`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Demo, "demo", false, "add the demo catalog when the ledger has no products")

	return cmd
}

func runMigrate(ctx context.Context, opts *MigrateOptions, cmd *cobra.Command) error {
	logger := opts.newLogger(cmd.ErrOrStderr(), slog.LevelInfo)

	backend, err := opts.openBackend(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "open ledger", err)
	}
	defer backend.Close()

	version, err := migrate.Run(ctx, backend, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "migrate", err)
	}
	now := time.Now()
	if err := seed.Apply(ctx, backend, now); err != nil {
		return WrapExitError(ExitCommandError, "seed defaults", err)
	}
	if opts.Demo {
		if err := seed.ApplyDemo(ctx, backend, now); err != nil {
			return WrapExitError(ExitCommandError, "seed demo catalog", err)
		}
	}

	return opts.formatter(cmd).Success(migrateResult{SchemaVersion: version, DemoSeeded: opts.Demo})
}
