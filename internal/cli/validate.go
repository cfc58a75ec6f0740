package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/luma/internal/program"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                      `json:"valid"`
	Programs int                       `json:"programs"`
	Errors   []program.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <programs-dir>",
		Short: "Validate programs without running them",
		Long: `Validate every program file in a directory without running the loop.

Checks that each file decodes, that program ids are unique, that every
claim, wish and rule parses, and that rule actions only refer to variables
their rule binds. Faster than run for development feedback.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loaded, err := LoadPrograms(dir)
	if err != nil {
		return outputValidateError(formatter, loadCode(err), err.Error())
	}
	formatter.VerboseLog("Found %d program(s) in %s", len(loaded.Definitions), dir)

	if len(loaded.Definitions) == 0 {
		return outputValidateError(formatter, ErrCodeLoad, fmt.Sprintf("no program files found in %s", dir))
	}
	for _, def := range loaded.Definitions {
		formatter.VerboseLog("Validated program %d (%s)", def.ID, def.Source)
	}

	if len(loaded.Invalid) > 0 {
		return outputValidationErrors(formatter, len(loaded.Definitions), loaded.Invalid)
	}
	return outputValidateSuccess(formatter, len(loaded.Definitions))
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, programs int) error {
	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Programs: programs})
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d program(s) valid\n", programs)
	return nil
}

// outputValidateError outputs a single load error.
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every validation error.
func outputValidationErrors(formatter *OutputFormatter, programs int, errs []program.ValidationError) error {
	if formatter.JSON() {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:    false,
				Programs: programs,
				Errors:   errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "program %d %s\n", err.Program, err.Field)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
