package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/replaykit/replaykit/internal/script"
)

// ValidationIssue is one reported problem in a script document.
type ValidationIssue struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Index   int    `json:"index,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds validation results for a script file.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Version string            `json:"version,omitempty"`
	Actions int               `json:"actions"`
	Errors  []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <script.json>",
		Short: "Validate a script file without playing it",
		Long: `Validate a recorded script file against the portable schema.

Performs structural schema validation followed by semantic checks
(required fields, timestamp ordering). Nothing is executed.

Exit codes:
  0 - Script is valid
  1 - Script failed validation
  2 - Command error (file not found, unreadable)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error("IO_ERROR", fmt.Sprintf("cannot read %s", path), err.Error())
		return WrapExitError(ExitCommandError, "failed to read script", err)
	}
	formatter.VerboseLog("Read %d bytes from %s", len(data), path)

	var issues []ValidationIssue

	// Structural pass first. A document the schema rejects usually
	// cannot be decoded into the model either, so stop there.
	if err := script.ValidateDocument(data); err != nil {
		issues = append(issues, ValidationIssue{
			Code:    "SERIALIZATION_ERROR",
			Field:   "document",
			Message: err.Error(),
		})
		return outputValidationResult(formatter, ValidationResult{Valid: false, Errors: issues})
	}

	s, err := script.Unmarshal(data)
	if err != nil {
		issues = append(issues, ValidationIssue{
			Code:    "SERIALIZATION_ERROR",
			Field:   "document",
			Message: err.Error(),
		})
		return outputValidationResult(formatter, ValidationResult{Valid: false, Errors: issues})
	}

	result := ValidationResult{
		Version: s.Version,
		Actions: s.ActionCount(),
	}

	if err := s.Validate(); err != nil {
		var verr *script.ValidationError
		if errors.As(err, &verr) {
			issues = append(issues, ValidationIssue{
				Code:    string(verr.Code),
				Field:   verr.Field,
				Index:   verr.Index,
				Message: verr.Msg,
			})
		} else {
			issues = append(issues, ValidationIssue{Code: "SCRIPT_ERROR", Message: err.Error()})
		}
	}

	result.Valid = len(issues) == 0
	result.Errors = issues
	return outputValidationResult(formatter, result)
}

func outputValidationResult(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		if result.Valid {
			return formatter.Success(result)
		}
		if err := formatter.Error(result.Errors[0].Code, result.Errors[0].Message, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}

	if result.Valid {
		fmt.Fprintf(formatter.Writer, "✓ Script valid (%d action(s), version %s)\n", result.Actions, result.Version)
		return nil
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range result.Errors {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", issue.Code, issue.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}
