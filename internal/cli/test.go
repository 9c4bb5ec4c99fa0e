package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/starwell/coherence/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden snapshots
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario.yaml | scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run YAML scenarios through the conformance harness.

Each scenario builds its reality network inline and executes a flow of
stabilize/synchronize/coordinate steps against a fresh in-memory
journal, a manual clock, and sequence ids, so runs are byte-stable.
Expect clauses and assertions validate the outcome; scenarios naming a
golden snapshot also compare against golden/<name>.golden next to the
scenario file.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  coherence test ./scenarios
  coherence test ./scenarios --filter "drifting-*"
  coherence test ./scenarios/steady_network.yaml --update
  coherence test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden snapshots")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, path string, cmd *cobra.Command) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenario path not found: %s", path))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "accessing scenario path", err)
	}

	var scenarioFiles []string
	if info.IsDir() {
		scenarioFiles, err = findScenarioFiles(path, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "finding scenarios", err)
		}
	} else {
		scenarioFiles = []string{path}
	}

	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}

	for _, scenarioFile := range scenarioFiles {
		scenResult := runScenario(scenarioFile, opts, cmd)
		result.Scenarios = append(result.Scenarios, scenResult)

		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findScenarioFiles finds all YAML scenario files in a directory,
// skipping golden directories.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runScenario executes a single scenario and returns the result.
func runScenario(scenarioFile string, opts *TestOptions, cmd *cobra.Command) ScenarioResult {
	w := cmd.OutOrStdout()

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return failScenario(w, opts, filepath.Base(scenarioFile),
			fmt.Sprintf("failed to load scenario: %v", err))
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return failScenario(w, opts, scenario.Name,
			fmt.Sprintf("execution failed: %v", err))
	}

	scenResult := ScenarioResult{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}

	// Golden snapshot handling. Scenarios without a golden name rely
	// on expects and assertions alone.
	if scenario.Golden != "" {
		goldenPath := goldenSnapshotPath(scenarioFile, scenario.Golden)
		switch {
		case opts.Update:
			if err := writeGoldenSnapshot(goldenPath, result); err != nil {
				return failScenario(w, opts, scenario.Name,
					fmt.Sprintf("failed to update golden snapshot: %v", err))
			}
			if opts.Format != "json" {
				fmt.Fprintf(w, "✓ %s (golden updated)\n", scenario.Name)
			}
			return ScenarioResult{Name: scenario.Name, Pass: true}
		default:
			match, err := compareGoldenSnapshot(goldenPath, result)
			if err != nil {
				return failScenario(w, opts, scenario.Name,
					fmt.Sprintf("golden comparison failed: %v", err))
			}
			if !match {
				scenResult.Pass = false
				scenResult.Errors = append(scenResult.Errors,
					"snapshot does not match golden file (run with --update to regenerate)")
			}
		}
	}

	if opts.Format != "json" {
		if scenResult.Pass {
			fmt.Fprintf(w, "✓ %s\n", scenario.Name)
		} else {
			fmt.Fprintf(w, "✗ %s\n", scenario.Name)
			for _, e := range scenResult.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
	}
	return scenResult
}

// failScenario reports an infrastructure-level scenario failure.
func failScenario(w io.Writer, opts *TestOptions, name, msg string) ScenarioResult {
	if opts.Format != "json" {
		fmt.Fprintf(w, "✗ %s\n", name)
		fmt.Fprintf(w, "  %s\n", msg)
	}
	return ScenarioResult{Name: name, Pass: false, Errors: []string{msg}}
}

// goldenSnapshotPath returns the golden file path for a scenario:
// golden/<name>.golden next to the scenario file.
func goldenSnapshotPath(scenarioFile, name string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

// snapshotBytes renders the report snapshot in the byte format the test
// harness goldens use, so CLI and go-test goldens stay interchangeable.
func snapshotBytes(result *harness.Result) ([]byte, error) {
	data, err := json.MarshalIndent(result.Snapshot, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// writeGoldenSnapshot writes the current snapshot as the golden file.
func writeGoldenSnapshot(goldenPath string, result *harness.Result) error {
	data, err := snapshotBytes(result)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0o755); err != nil {
		return fmt.Errorf("creating golden directory: %w", err)
	}
	return os.WriteFile(goldenPath, data, 0o644)
}

// compareGoldenSnapshot compares the snapshot against the golden file.
func compareGoldenSnapshot(goldenPath string, result *harness.Result) (bool, error) {
	goldenData, err := os.ReadFile(goldenPath)
	if err != nil {
		return false, fmt.Errorf("reading golden file: %w", err)
	}
	currentData, err := snapshotBytes(result)
	if err != nil {
		return false, err
	}
	return string(goldenData) == string(currentData), nil
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}
	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
