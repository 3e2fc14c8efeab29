package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/closer/internal/compiler"
	"github.com/roach88/closer/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult summarizes a compiled problem.
type CompilationResult struct {
	Name        string   `json:"name"`
	Algebra     string   `json:"algebra"`
	RootSize    int      `json:"root_size"`
	Power       int      `json:"power"`
	Cardinality int      `json:"cardinality,omitempty"` // 0 when it overflows int
	Operations  []string `json:"operations"`
	Generators  int      `json:"generators"`
	Strategy    string   `json:"strategy"`
	Terms       bool     `json:"terms"`
	Searches    []string `json:"searches,omitempty"`
	Fingerprint string   `json:"fingerprint"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <problem>",
		Short: "Compile a CUE problem and show its fingerprint",
		Long: `Compile a CUE closure problem and summarize it.

The fingerprint identifies the closure state the problem produces and is
what checkpoints are matched against on resume. With --output, the
canonical JSON description the fingerprint is computed from is written
to a file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the canonical problem description to this file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, err := LoadProblem(path)
	if err != nil {
		return outputCompileError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d CUE file(s) from %s", loadResult.FileCount, path)

	p := loadResult.Problem
	if verrs := compiler.Validate(p); len(verrs) > 0 {
		return outputValidationErrors(formatter, verrs)
	}

	result, err := summarizeProblem(p)
	if err != nil {
		return outputCompileError(formatter, err)
	}

	if opts.Output != "" {
		if err := writeDescription(p, opts.Output); err != nil {
			return outputCompileError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing output file: %v", err)})
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

func summarizeProblem(p *compiler.Problem) (*CompilationResult, error) {
	a, err := p.Algebra()
	if err != nil {
		return nil, err
	}
	result := &CompilationResult{
		Name:        p.Name,
		Algebra:     p.Root.Name(),
		RootSize:    p.Root.Size(),
		Power:       p.Power,
		Cardinality: a.Cardinality(),
		Generators:  len(p.Generators),
		Strategy:    p.Strategy.String(),
		Terms:       p.TracksTerms(),
		Fingerprint: p.Fingerprint,
	}
	for _, op := range p.Root.IntOperations() {
		result.Operations = append(result.Operations, op.Symbol().String())
	}
	if p.Find != nil {
		result.Searches = append(result.Searches, "find "+p.Find.String())
	}
	if len(p.FindAll) > 0 {
		result.Searches = append(result.Searches, fmt.Sprintf("find all of %d elements", len(p.FindAll)))
	}
	if h := p.Homomorphism; h != nil {
		result.Searches = append(result.Searches, "homomorphism into "+h.Target.Name())
	}
	if p.Constraint != nil {
		result.Searches = append(result.Searches, "blocks/values constraint")
	}
	if len(p.Clone) > 0 {
		names := make([]string, len(p.Clone))
		for i, op := range p.Clone {
			names[i] = op.Symbol().Name
		}
		result.Searches = append(result.Searches, "clone membership of "+strings.Join(names, ", "))
	}
	return result, nil
}

// outputCompileSuccess outputs a successful compilation.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled problem %s\n\n", result.Name)
	cardinality := any(result.Cardinality)
	if result.Cardinality == 0 {
		cardinality = "too large to count"
	}
	formatter.Fields(
		Field{"Algebra", fmt.Sprintf("%s^%d (root size %d)", result.Algebra, result.Power, result.RootSize)},
		Field{"Cardinality", cardinality},
		Field{"Operations", strings.Join(result.Operations, ", ")},
		Field{"Generators", result.Generators},
		Field{"Strategy", result.Strategy},
		Field{"Terms", result.Terms},
		Field{"Fingerprint", result.Fingerprint},
	)
	for _, s := range result.Searches {
		fmt.Fprintf(formatter.Writer, "  Search: %s\n", s)
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote canonical description to %s\n", outputFile)
	}
	return nil
}

// outputCompileError outputs a load or compilation error.
func outputCompileError(formatter *OutputFormatter, err error) error {
	code, message := parseCompileError(err)
	_ = formatter.Error(code, message, nil)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		if loadErr.Pos.IsValid() {
			return loadErr.Code, fmt.Sprintf("%s:%d:%d: %s", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column(), loadErr.Message)
		}
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeDescription writes the canonical description of p, the bytes its
// fingerprint is computed from.
func writeDescription(p *compiler.Problem, filename string) error {
	data, err := ir.MarshalCanonical(p.Describe())
	if err != nil {
		return fmt.Errorf("marshaling problem: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
