package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by every command.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Store   string // SQLite path, ":memory:" keeps runs ephemeral
	Metrics bool   // also record events as Prometheus metrics
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the coherence CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "coherence",
		Short: "Reality stabilization and cross-replica synchronization engine",
		Long: `Operator tool for reality networks defined in CUE manifests.

Registers the manifest's constructs with a stabilization engine and a
synchronization coordinator, then runs the requested operation against
them: remediation, a synchronization round, stability monitoring, or a
coordination report.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", ":memory:", "SQLite journal path")
	cmd.PersistentFlags().BoolVar(&opts.Metrics, "metrics", false, "record engine events as Prometheus metrics")

	// Add subcommands
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewStabilizeCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewMonitorCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// newLogger builds the command logger. Text output gets a tint handler
// on stderr so log lines stay out of parseable stdout; JSON output gets
// structured JSON logs. Verbose lowers the level to debug.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	if opts.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{Level: level}))
}
