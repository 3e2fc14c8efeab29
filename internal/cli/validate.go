package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/closer/internal/compiler"
	"github.com/roach88/closer/internal/engine"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <problem>",
		Short: "Validate a problem without running it",
		Long: `Validate a CUE closure problem without computing the closure.

Checks CUE syntax, the shape of every algebra and of the problem, the
cross-field rules (generator ranges, image counts, constraint indices,
clone arities), and finally that the engine accepts the configuration.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, err := LoadProblem(path)
	if err != nil {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
		}
		// Shape errors have a position and are reported like validation errors
		if loadErr.Code == ErrCodeCompileFailed {
			return outputValidationErrors(formatter, []compiler.ValidationError{{
				Field:   "problem",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr),
			}})
		}
		return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
	}

	formatter.VerboseLog("Loaded %d CUE file(s) from %s", loadResult.FileCount, path)
	formatter.VerboseLog("Validating problem: %s", loadResult.Problem.Name)

	if verrs := ValidateProblem(loadResult.Problem); len(verrs) > 0 {
		return outputValidationErrors(formatter, verrs)
	}

	return outputValidateSuccess(formatter)
}

// ValidateProblem runs the compiler checks and, when they pass, builds an
// engine for the problem to surface configuration errors.
func ValidateProblem(p *compiler.Problem) []compiler.ValidationError {
	if verrs := compiler.Validate(p); len(verrs) > 0 {
		return verrs
	}
	a, err := p.Algebra()
	if err == nil {
		_, err = engine.New(a, p.Generators, p.Options()...)
	}
	if err != nil {
		ve := compiler.ValidationError{Field: "problem", Message: err.Error(), Code: ErrCodeClosure}
		var ce *engine.ConfigError
		if errors.As(err, &ce) {
			ve.Field = string(ce.Code)
			ve.Message = ce.Message
		}
		return []compiler.ValidationError{ve}
	}
	return nil
}

func lineOf(e *LoadError) int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter) error {
	if formatter.Format == "json" {
		result := ValidationResult{Valid: true}
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, "✓ Problem is valid")
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
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

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
