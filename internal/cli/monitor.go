package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/starwell/coherence/internal/reality"
)

// MonitorOptions holds flags for the monitor command.
type MonitorOptions struct {
	*RootOptions
	Interval    time.Duration
	Count       int
	MetricsAddr string
}

// MonitorSnapshot pairs a construct with its stability metrics.
type MonitorSnapshot struct {
	ConstructID string                   `json:"construct_id"`
	Metrics     reality.StabilityMetrics `json:"metrics"`
}

// NewMonitorCommand creates the monitor command.
func NewMonitorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MonitorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "monitor <manifest>",
		Short: "Snapshot node network stability",
		Long: `Register the manifest's constructs and report their stability metrics.

By default prints one snapshot per construct and exits. With --interval
the command keeps sampling on that period until --count snapshots have
printed, or until interrupted when --count is 0.

Examples:
  coherence monitor ./network.cue
  coherence monitor ./network.cue --interval 30s --count 10
  coherence monitor ./network.cue --interval 1m --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(opts, args[0], cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "sampling period (0 samples once)")
	cmd.Flags().IntVar(&opts.Count, "count", 1, "number of samples (0 runs until interrupted)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while sampling (implies --metrics)")

	return cmd
}

func runMonitor(opts *MonitorOptions, manifestPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.MetricsAddr != "" {
		opts.Metrics = true
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	w, err := openWorld(opts.RootOptions, manifestPath, logger)
	if err != nil {
		_ = formatter.Error(taxonomyCode(err), err.Error(), nil)
		return err
	}
	defer w.Close()

	if opts.MetricsAddr != "" {
		srv := &http.Server{Addr: opts.MetricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics endpoint failed", "addr", opts.MetricsAddr, "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	ctx := cmd.Context()
	samples := 0
	for {
		if err := printSnapshots(w, formatter); err != nil {
			_ = formatter.Error(taxonomyCode(err), err.Error(), nil)
			return WrapExitError(ExitCommandError, "monitoring failed", err)
		}
		samples++
		if opts.Interval <= 0 || (opts.Count > 0 && samples >= opts.Count) {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(opts.Interval):
		}
	}
}

func printSnapshots(w *world, formatter *OutputFormatter) error {
	snapshots := make([]MonitorSnapshot, 0, len(w.constructs))
	for _, id := range w.eng.Realities() {
		m, err := w.eng.MonitorStability(id)
		if err != nil {
			return err
		}
		snapshots = append(snapshots, MonitorSnapshot{ConstructID: id, Metrics: m})
	}

	if formatter.Format == "json" {
		return formatter.Success(snapshots)
	}
	for _, s := range snapshots {
		fmt.Fprintf(formatter.Writer, "%s: avg stability %.3f (variance %.4f), %d/%d node(s) active, uptime %.0f%%\n",
			s.ConstructID,
			s.Metrics.AvgStability, s.Metrics.Variance,
			s.Metrics.ActiveNodes, s.Metrics.TotalNodes,
			s.Metrics.Uptime*100)
	}
	return nil
}
