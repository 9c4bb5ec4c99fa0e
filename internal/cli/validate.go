package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/starwell/coherence/internal/manifest"
	"github.com/starwell/coherence/internal/reality"
)

// ConstructSummary describes one compiled construct for validate output.
type ConstructSummary struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Nodes   int    `json:"nodes"`
	Anchors int    `json:"anchors,omitempty"`
}

// ValidationResult holds manifest validation results.
type ValidationResult struct {
	Valid      bool               `json:"valid"`
	Constructs []ConstructSummary `json:"constructs,omitempty"`
	Errors     []ValidationIssue  `json:"errors,omitempty"`
}

// ValidationIssue is one compile error with its manifest location.
type ValidationIssue struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Filename string `json:"filename,omitempty"`
	Line     int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Validate a reality network manifest",
		Long: `Compile a CUE manifest (file or directory) without running anything.

Checks schema constraints (health scores in [0,1], positive node
capacity, known node kinds) and construct invariants (unique node ids,
non-empty networks). Faster than stabilize/sync for manifest feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, manifestPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	constructs, err := manifest.Load(manifestPath)
	if err != nil {
		return outputValidationErrors(formatter, compileIssues(err))
	}
	if len(constructs) == 0 {
		return outputValidationErrors(formatter, []ValidationIssue{{
			Field:   "construct",
			Message: fmt.Sprintf("no constructs declared in %s", manifestPath),
		}})
	}

	result := ValidationResult{Valid: true}
	for _, c := range constructs {
		formatter.VerboseLog("compiled construct %s (%d nodes)", c.ID, len(c.Nodes))
		result.Constructs = append(result.Constructs, summarize(c))
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ manifest valid: %d construct(s)\n", len(result.Constructs))
	for _, c := range result.Constructs {
		fmt.Fprintf(formatter.Writer, "  %s (%s): %d node(s), %d anchor(s)\n", c.ID, c.Kind, c.Nodes, c.Anchors)
	}
	return nil
}

func summarize(c *reality.Construct) ConstructSummary {
	return ConstructSummary{
		ID:      c.ID,
		Kind:    string(c.Kind),
		Nodes:   len(c.Nodes),
		Anchors: len(c.Anchors),
	}
}

// compileIssues flattens a manifest error into validation issues.
func compileIssues(err error) []ValidationIssue {
	var ce *manifest.CompileError
	if errors.As(err, &ce) {
		issue := ValidationIssue{Field: ce.Field, Message: ce.Message}
		if ce.Pos.IsValid() {
			issue.Filename = ce.Pos.Filename()
			issue.Line = ce.Pos.Line()
		}
		return []ValidationIssue{issue}
	}
	return []ValidationIssue{{Field: "manifest", Message: err.Error()}}
}

// outputValidationErrors reports compile failures and returns the
// validation-failure exit code.
func outputValidationErrors(formatter *OutputFormatter, issues []ValidationIssue) error {
	if formatter.Format == "json" {
		result := ValidationResult{Valid: false, Errors: issues}
		_ = formatter.Error(string(reality.CodeValidationFailed), issues[0].Message, result)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", issue.Filename, issue.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Field, issue.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
}
