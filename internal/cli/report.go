package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/starwell/coherence/internal/synchro"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Since time.Duration
	Sync  bool
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report <manifest>",
		Short: "Generate a synchronization report",
		Long: `Track the manifest's constructs and report coordination health.

Runs a synchronization round and a drift sweep first (disable with
--sync=false to report on the untouched network), then aggregates
operation counts, average sync time, per-construct health, drift
events, and recommendations over the --since window.

Examples:
  coherence report ./network.cue
  coherence report ./network.cue --since 24h --format json
  coherence report ./network.cue --sync=false`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, args[0], cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Since, "since", time.Hour, "report window reaching back from now")
	cmd.Flags().BoolVar(&opts.Sync, "sync", true, "run a synchronization round before reporting")

	return cmd
}

func runReport(opts *ReportOptions, manifestPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	w, err := openWorld(opts.RootOptions, manifestPath, newLogger(opts.RootOptions, cmd.ErrOrStderr()))
	if err != nil {
		_ = formatter.Error(taxonomyCode(err), err.Error(), nil)
		return err
	}
	defer w.Close()

	ctx := cmd.Context()

	if opts.Sync && len(w.constructs) >= 2 {
		// A failed round still leaves journaled outcomes worth
		// reporting; only infrastructure errors abort.
		if _, err := w.coord.SynchronizeRealities(ctx); err != nil {
			formatter.VerboseLog("synchronization round degraded: %v", err)
		}
		if _, err := w.coord.DetectDrift(ctx); err != nil {
			_ = formatter.Error(taxonomyCode(err), err.Error(), nil)
			return WrapExitError(ExitCommandError, "drift detection failed", err)
		}
	}

	from := time.Now().Add(-opts.Since)
	report, err := w.coord.GenerateReport(ctx, from, time.Time{})
	if err != nil {
		_ = formatter.Error(taxonomyCode(err), err.Error(), nil)
		return WrapExitError(ExitCommandError, "report generation failed", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(report)
	}
	printReport(formatter, report)
	return nil
}

func printReport(formatter *OutputFormatter, report synchro.Report) {
	w := formatter.Writer
	fmt.Fprintf(w, "Synchronization report (%s)\n", report.State)
	fmt.Fprintf(w, "  tracked: %d construct(s)\n", report.Tracked)
	fmt.Fprintf(w, "  operations: %d total, %d successful, %d failed, avg sync %s, %.1f energy\n",
		report.Operations.Total, report.Operations.Successful, report.Operations.Failed,
		report.Operations.AvgSyncTime, report.Operations.TotalEnergy)

	for _, c := range report.Constructs {
		fmt.Fprintf(w, "  %s (%s): mean health %.3f\n", c.ID, c.Kind, c.Health.Mean())
	}

	if len(report.Drift) > 0 {
		fmt.Fprintf(w, "  drift events: %d\n", len(report.Drift))
		for _, d := range report.Drift {
			fmt.Fprintf(w, "    %s↔%s: %s %.3f (leader %s)\n",
				d.ConstructA, d.ConstructB, d.Kind, d.Magnitude, d.Direction)
		}
	}

	fmt.Fprintln(w, "  recommendations:")
	for _, r := range report.Recommendations {
		fmt.Fprintf(w, "    - %s\n", r)
	}
}
