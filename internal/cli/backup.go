package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jipraks/kasirgratisan/internal/backup"
	"github.com/jipraks/kasirgratisan/internal/store"
)

type manifestView struct {
	Action string `json:"action"`
	Path   string `json:"path"`
	backup.Manifest
}

func (m manifestView) renderText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s %s: %d data (format versi %d)\n", m.Action, m.Path, m.Total(), m.Version); err != nil {
		return err
	}
	for _, c := range store.Collections() {
		if n := m.Counts[c]; n > 0 {
			if _, err := fmt.Fprintf(w, "  %-18s %d\n", c, n); err != nil {
				return err
			}
		}
	}
	return nil
}

type ExportOptions struct {
	*RootOptions
	Out string
}

func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole ledger to a backup file",
		Long: `Write the whole ledger to a backup file and record the time of the backup.

Examples:
  kasir export
  kasir export --out /media/usb/toko.json
  kasir export --out - > toko.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output file, - for stdout (default kasirgratisan-backup-DATE.json)")

	return cmd
}

func runExport(ctx context.Context, opts *ExportOptions, cmd *cobra.Command) error {
	l, err := opts.openLedger(ctx, cmd, slog.LevelWarn)
	if err != nil {
		return err
	}
	defer l.Close()

	exporter := backup.NewExporter(l.svc.Backend(), l.svc.Bus(), l.logger, backup.WithLocker(l.svc.WriteLock()))
	if opts.Out == "-" {
		_, err := exporter.Export(ctx, cmd.OutOrStdout())
		return err
	}

	path := opts.Out
	if path == "" {
		path = backup.FileName(time.Now())
	}
	f, err := os.Create(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "create backup file", err)
	}
	manifest, err := exporter.Export(ctx, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	return opts.formatter(cmd).Success(manifestView{Action: "Backup disimpan ke", Path: path, Manifest: manifest})
}

type ImportOptions struct {
	*RootOptions
	Yes bool
}

func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <backup-file>",
		Short: "Replace the whole ledger with a backup file",
		Long: `Replace the whole ledger with the contents of a backup file. Files from
older versions of the app are upgraded on the way in. If writing fails
part-way the previous ledger is put back.

Everything recorded since the backup was taken is lost, so --yes is required.

Examples:
  kasir import kasirgratisan-backup-2026-10-01.json --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "confirm replacing all data")

	return cmd
}

func runImport(ctx context.Context, opts *ImportOptions, path string, cmd *cobra.Command) error {
	if !opts.Yes {
		return NewExitError(ExitCommandError, "import replaces all data; pass --yes to confirm")
	}
	f, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "open backup file", err)
	}
	defer f.Close()

	l, err := opts.openLedger(ctx, cmd, slog.LevelWarn)
	if err != nil {
		return err
	}
	defer l.Close()

	manifest, err := backup.NewImporter(l.svc.Backend(), l.svc.Bus(), l.logger, backup.WithLocker(l.svc.WriteLock())).Import(ctx, f)
	if err != nil {
		return err
	}
	return opts.formatter(cmd).Success(manifestView{Action: "Data dipulihkan dari", Path: path, Manifest: manifest})
}
