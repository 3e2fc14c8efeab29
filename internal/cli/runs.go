package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/closer/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	Show     string // run id to show in full
	Delete   string // run id to delete
}

// RunInfo is one stored run as printed by the runs command.
type RunInfo struct {
	ID          string   `json:"id"`
	Problem     string   `json:"problem"`
	Fingerprint string   `json:"fingerprint"`
	Pass        int      `json:"pass"`
	Size        int      `json:"size"`
	ClosedMark  int      `json:"closed_mark"`
	CurrentMark int      `json:"current_mark"`
	Completed   bool     `json:"completed"`
	StopReason  string   `json:"stop_reason"`
	Digest      string   `json:"digest"`
	Seq         int64    `json:"seq"`
	Elements    [][]int  `json:"elements,omitempty"`
	Terms       []string `json:"terms,omitempty"`
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs [problem]",
		Short: "List, show or delete checkpointed runs",
		Long: `Inspect the runs saved in a checkpoint database.

Without arguments every run is listed in save order. With a problem,
only runs of that problem (same fingerprint) are listed. --show prints
one run with its elements; --delete removes a run and its checkpoint.

Examples:
  closer runs --db ./closer.db
  closer runs --db ./closer.db ./z3.cue
  closer runs --db ./closer.db --show 0192f0c4-...
  closer runs --db ./closer.db --delete 0192f0c4-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			problem := ""
			if len(args) == 1 {
				problem = args[0]
			}
			return runRuns(opts, problem, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Show, "show", "", "show one run with its elements")
	cmd.Flags().StringVar(&opts.Delete, "delete", "", "delete a run")
	cmd.MarkFlagsMutuallyExclusive("show", "delete")

	return cmd
}

func runRuns(opts *RunsOptions, problem string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	switch {
	case opts.Delete != "":
		if err := st.DeleteRun(ctx, opts.Delete); err != nil {
			return WrapExitError(ExitCommandError, "failed to delete run", err)
		}
		if formatter.Format == "json" {
			return formatter.Success(map[string]string{"deleted": opts.Delete})
		}
		fmt.Fprintf(formatter.Writer, "✓ Deleted run %s\n", opts.Delete)
		return nil

	case opts.Show != "":
		return showRun(ctx, st, opts.Show, formatter)
	}

	fingerprint := ""
	if problem != "" {
		p, err := loadValidProblem(problem)
		if err != nil {
			return outputCompileError(formatter, err)
		}
		fingerprint = p.Fingerprint
	}

	runs, err := st.ListRuns(ctx, fingerprint)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	infos := make([]RunInfo, len(runs))
	for i, r := range runs {
		infos[i] = runInfo(r)
	}

	if formatter.Format == "json" {
		return formatter.Success(infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs found.")
		return nil
	}
	for _, r := range infos {
		state := "paused"
		if r.Completed {
			state = "complete"
		}
		fmt.Fprintf(formatter.Writer, "%s  %-12s %-8s pass=%d size=%d stop=%s\n",
			r.ID, r.Problem, state, r.Pass, r.Size, r.StopReason)
	}
	return nil
}

// showRun prints one run with the elements of its checkpoint.
func showRun(ctx context.Context, st *store.Store, id string, formatter *OutputFormatter) error {
	cp, run, err := st.LoadCheckpoint(ctx, id, "")
	if err != nil {
		if store.IsRunNotFound(err) {
			return WrapExitError(ExitCommandError, "run not found", err)
		}
		return WrapExitError(ExitCommandError, "failed to load checkpoint", err)
	}

	info := runInfo(run)
	info.Elements = make([][]int, len(cp.Elements))
	for i, e := range cp.Elements {
		info.Elements[i] = e.Raw()
		if cp.Terms != nil {
			info.Terms = append(info.Terms, cp.Terms[i].String())
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(info)
	}

	fmt.Fprintf(formatter.Writer, "Run %s\n\n", info.ID)
	formatter.Fields(
		Field{"Problem", info.Problem},
		Field{"Fingerprint", info.Fingerprint},
		Field{"Pass", info.Pass},
		Field{"Marks", fmt.Sprintf("%d/%d", info.ClosedMark, info.CurrentMark)},
		Field{"Size", info.Size},
		Field{"Completed", info.Completed},
		Field{"Stop reason", info.StopReason},
		Field{"Digest", info.Digest},
	)
	fmt.Fprintln(formatter.Writer, "\nElements:")
	for i, e := range info.Elements {
		if info.Terms != nil {
			fmt.Fprintf(formatter.Writer, "  %d: %v  %s\n", i, e, info.Terms[i])
		} else {
			fmt.Fprintf(formatter.Writer, "  %d: %v\n", i, e)
		}
	}
	return nil
}

func runInfo(r store.Run) RunInfo {
	return RunInfo{
		ID:          r.ID,
		Problem:     r.Problem,
		Fingerprint: r.Fingerprint,
		Pass:        r.Pass,
		Size:        r.Size,
		ClosedMark:  r.ClosedMark,
		CurrentMark: r.CurrentMark,
		Completed:   r.Completed,
		StopReason:  r.StopReason,
		Digest:      r.Digest,
		Seq:         r.Seq,
	}
}
