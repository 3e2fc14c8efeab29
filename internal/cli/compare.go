package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/closer/internal/engine"
	"github.com/roach88/closer/internal/harness"
)

// CompareOptions holds flags for the compare command.
type CompareOptions struct {
	*RootOptions
	Strategies []string
	Threads    int
	ChunkSize  int
	Resume     bool
}

// CompareResult reports every run and the disagreements found.
type CompareResult struct {
	Problem string               `json:"problem"`
	Agree   bool                 `json:"agree"`
	Runs    []harness.RunSummary `json:"runs"`
	Errors  []string             `json:"errors,omitempty"`
}

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compare <problem>",
		Short: "Check that every strategy computes the same closure",
		Long: `Close a problem serially, then under each requested strategy, and
compare every run with the serial one.

Runs that close fully must agree on the pass count, the element set,
the homomorphism images and the meaning of every term. Runs that stop
early must stop for the same reason. Every run is also checked for
closedness and for terms that evaluate to their elements.

Exit codes:
  0 - All strategies agree
  1 - A strategy disagrees with the serial run
  2 - Command error (invalid problem, unknown strategy)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Strategies, "strategies", []string{"parallel", "equal_workload"}, "strategies to compare against serial")
	cmd.Flags().IntVar(&opts.Threads, "threads", 0, "worker threads (0 = problem setting)")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", 0, "chunk size (0 = problem setting)")
	cmd.Flags().BoolVar(&opts.Resume, "resume", false, "also close pass by pass through checkpoints")

	return cmd
}

func runCompare(opts *CompareOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	for _, name := range opts.Strategies {
		if _, ok := engine.ParseStrategy(name); !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown strategy %q (want serial, parallel, equal_workload or auto)", name))
		}
	}

	p, err := loadValidProblem(path)
	if err != nil {
		return outputCompileError(formatter, err)
	}

	scenario := &harness.Scenario{
		Name:       p.Name,
		Strategies: opts.Strategies,
		Threads:    opts.Threads,
		ChunkSize:  opts.ChunkSize,
		Resume:     opts.Resume,
	}
	formatter.VerboseLog("Comparing serial with %s", strings.Join(opts.Strategies, ", "))

	ctx, stop := signalContext(cmd, newLogger(opts.RootOptions, cmd))
	defer stop()

	result, err := harness.RunProblem(ctx, scenario, p)
	if err != nil {
		return WrapExitError(ExitCommandError, "comparison failed", err)
	}

	out := CompareResult{
		Problem: p.Name,
		Agree:   result.Pass,
		Runs:    result.Runs,
		Errors:  result.Errors,
	}

	if formatter.Format == "json" {
		if out.Agree {
			return formatter.Success(out)
		}
		if err := formatter.Encode(CLIResponse{
			Status: "error",
			Data:   out,
			Error: &CLIError{
				Code:    ErrCodeMismatch,
				Message: fmt.Sprintf("%d disagreement(s)", len(out.Errors)),
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "strategies disagree")
	}

	w := formatter.Writer
	for _, r := range out.Runs {
		fmt.Fprintf(w, "  %-15s size=%d passes=%d stop=%s applications=%d\n", r.Strategy, r.Size, r.Passes, r.StopReason, r.Applications)
	}
	fmt.Fprintln(w)
	if out.Agree {
		fmt.Fprintln(w, "✓ All strategies agree")
		return nil
	}
	fmt.Fprintln(w, "✗ Strategies disagree")
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return NewExitError(ExitFailure, "strategies disagree")
}
