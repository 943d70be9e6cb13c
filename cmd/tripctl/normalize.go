package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/incentive-trips/backend/internal/app"
	"github.com/incentive-trips/backend/internal/config"
	"github.com/incentive-trips/backend/internal/domain"
	"github.com/incentive-trips/backend/internal/repo"
	"github.com/incentive-trips/backend/internal/report"
	"github.com/incentive-trips/backend/internal/service"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize-details",
	Short: "Rewrite agenda detail entries into canonical {type, value} form",
	Long: `Scan every trip's stored agenda and find detail entries that are not in
canonical {type, value} form (bare strings, nested arrays, one-key objects,
{text, icon} objects).

By default this is a dry run: the before/after diff is written to a report
file and nothing in the store changes. With --apply the normalized details
are written back. Each trip is written with a version check, so a trip
edited after the scan is skipped and listed as a failure in the report.

Examples:
  tripctl normalize-details                                # Dry run, JSON report
  tripctl normalize-details --report out/diff.yaml --format yaml
  tripctl normalize-details --apply                        # Write changes back`,
	RunE: runNormalize,
}

func init() {
	normalizeCmd.Flags().Bool("apply", false, "Write normalized details back (default is a dry run)")
	normalizeCmd.Flags().String("report", "", "Report path (default normalize-details-<timestamp>.<format>)")
	normalizeCmd.Flags().String("format", "json", "Report format: json, yaml or csv")
	normalizeCmd.Flags().Int("concurrency", 4, "Trips written in parallel with --apply")
	normalizeCmd.Flags().Duration("timeout", 30*time.Minute, "Abort the run after this long")
}

type normalizeOptions struct {
	apply       bool
	reportPath  string
	format      report.Format
	concurrency int
}

func runNormalize(cmd *cobra.Command, args []string) error {
	apply, _ := cmd.Flags().GetBool("apply")
	reportPath, _ := cmd.Flags().GetString("report")
	formatFlag, _ := cmd.Flags().GetString("format")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	format, err := report.ParseFormat(formatFlag)
	if err != nil {
		return err
	}
	if reportPath == "" {
		reportPath = fmt.Sprintf("normalize-details-%s.%s", time.Now().UTC().Format("20060102-150405"), format.Extension())
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}
	logger := app.NewLogger(os.Stderr, logLevel)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	stores, err := app.OpenTripStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	_, err = normalizeDetails(ctx, cmd.OutOrStdout(), stores.Trips, logger, normalizeOptions{
		apply:       apply,
		reportPath:  reportPath,
		format:      format,
		concurrency: concurrency,
	})
	return err
}

// normalizeDetails plans the run, applies it when asked, writes the report
// file and prints a summary to out.
func normalizeDetails(ctx context.Context, out io.Writer, trips repo.TripRepo, log *slog.Logger, opts normalizeOptions) (domain.NormalizationReport, error) {
	n := service.NewNormalizer(trips, log, opts.concurrency)

	rep, err := n.Plan(ctx)
	if err != nil {
		return rep, err
	}
	if opts.apply {
		if err := n.Apply(ctx, &rep); err != nil {
			// Still write what was done before the run was cut short.
			_ = writeReport(opts.reportPath, opts.format, rep)
			return rep, err
		}
	}
	if err := writeReport(opts.reportPath, opts.format, rep); err != nil {
		return rep, err
	}

	printSummary(out, rep, opts)
	return rep, nil
}

func writeReport(path string, format report.Format, rep domain.NormalizationReport) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.Write(f, format, rep); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printSummary(out io.Writer, rep domain.NormalizationReport, opts normalizeOptions) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	if !opts.apply {
		fmt.Fprintln(out, color.YellowString("DRY RUN MODE - No trips will be modified"))
	}
	fmt.Fprintf(out, "Scanned %d trip(s)\n", rep.TripsScanned)
	fmt.Fprintf(out, "Found %d non-canonical detail(s) in %d trip(s)\n", rep.ChangeCount(), len(rep.Trips))

	if opts.apply {
		fmt.Fprintf(out, "%s Updated %d trip(s)\n", green("✓"), len(rep.Updated))
	}
	if len(rep.Failures) > 0 {
		fmt.Fprintf(out, "%s %d trip(s) failed:\n", red("✗"), len(rep.Failures))
		for _, f := range rep.Failures {
			fmt.Fprintf(out, "  %s: %s\n", f.TripID, f.Error)
		}
	}
	fmt.Fprintf(out, "Report written to %s\n", opts.reportPath)
	if !opts.apply && len(rep.Trips) > 0 {
		fmt.Fprintln(out, "Run with --apply to write the changes")
	}
}
