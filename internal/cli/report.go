package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jipraks/kasirgratisan/internal/report"
)

type ReportOptions struct {
	*RootOptions
	Days int
	XLSX string
}

type summaryView report.Summary

func (s summaryView) renderText(w io.Writer) error {
	return report.WriteText(w, report.Summary(s))
}

func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize recent sales",
		Long: `Summarize sales, discounts, cost of goods and profit over the last days,
with the best-selling products and a breakdown per payment method.

Examples:
  kasir report
  kasir report --days 30 --xlsx laporan.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Days, "days", 7, "number of days to cover")
	cmd.Flags().StringVar(&opts.XLSX, "xlsx", "", "also write the summary to this spreadsheet")

	return cmd
}

func runReport(ctx context.Context, opts *ReportOptions, cmd *cobra.Command) error {
	if opts.Days < 1 {
		return NewExitError(ExitCommandError, "--days must be at least 1")
	}

	l, err := opts.openLedger(ctx, cmd, slog.LevelWarn)
	if err != nil {
		return err
	}
	defer l.Close()

	summary, err := l.svc.Report(ctx, opts.Days)
	if err != nil {
		return err
	}

	if opts.XLSX != "" {
		f, err := os.Create(opts.XLSX)
		if err != nil {
			return WrapExitError(ExitCommandError, "create spreadsheet", err)
		}
		err = report.WriteXLSX(f, summary)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "write spreadsheet", err)
		}
		opts.formatter(cmd).VerboseLog("spreadsheet written to %s", opts.XLSX)
	}
	return opts.formatter(cmd).Success(summaryView(summary))
}
