package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/replaykit/replaykit/internal/backend"
	"github.com/replaykit/replaykit/internal/compat"
	"github.com/replaykit/replaykit/internal/faults"
)

// CompatOptions holds flags for the compat command.
type CompatOptions struct {
	*RootOptions
	Target string
}

// NewCompatCommand creates the compat command.
func NewCompatCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompatOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compat <script.json>",
		Short: "Test a script's compatibility with a target backend",
		Long: `Test whether a recorded script can be played by the target backend.

Checks structure, field completeness, and round-trip fidelity. A script
recorded by the other backend produces warnings, not errors: identity
differences never block playback.

Exit codes:
  0 - Script is compatible (warnings allowed)
  1 - Script is incompatible
  2 - Command error (file not found, bad target)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompat(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", string(backend.Interpreted),
		"target backend (interpreted|native)")

	return cmd
}

func runCompat(opts *CompatOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	target, err := backend.Parse(opts.Target)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --target", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error(string(faults.KindIO), fmt.Sprintf("cannot read %s", path), err.Error())
		return WrapExitError(ExitCommandError, "failed to read script", err)
	}

	// The recorded core type names the source backend; an unknown or
	// empty value is reported by the tester, so default it to the
	// target here rather than failing.
	source := target
	if s, perr := backend.Parse(peekCoreType(data)); perr == nil {
		source = s
	}
	formatter.VerboseLog("Testing %s script against %s backend", source, target)

	tester := compat.NewTester(target, newLogger(opts.RootOptions))
	result, err := tester.TestCrossCore(data, source, target)
	if err != nil {
		_ = formatter.Error(string(faults.KindOf(err)), err.Error(), nil)
		return WrapExitError(ExitFailure, "compatibility test failed", err)
	}

	return outputCompatResult(formatter, result)
}

// peekCoreType extracts metadata.core_type without full decoding.
func peekCoreType(data []byte) string {
	s, err := compat.PeekCoreType(data)
	if err != nil {
		return ""
	}
	return s
}

func outputCompatResult(formatter *OutputFormatter, result compat.Result) error {
	if formatter.Format == "json" {
		if result.IsCompatible {
			return formatter.Success(result)
		}
		if err := formatter.Error("SCRIPT_ERROR", result.Issues[0], result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("incompatible: %d issue(s)", len(result.Issues)))
	}

	w := formatter.Writer
	if result.IsCompatible {
		fmt.Fprintf(w, "✓ Compatible (version %s, recorded by %s)\n", result.Version, result.CoreType)
	} else {
		fmt.Fprintln(w, "✗ Incompatible")
	}
	for _, issue := range result.Issues {
		fmt.Fprintf(w, "  issue: %s\n", issue)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}

	if !result.IsCompatible {
		return NewExitError(ExitFailure, fmt.Sprintf("incompatible: %d issue(s)", len(result.Issues)))
	}
	return nil
}
