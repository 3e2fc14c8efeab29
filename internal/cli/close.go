package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/closer/internal/compiler"
	"github.com/roach88/closer/internal/engine"
	"github.com/roach88/closer/internal/ir"
	"github.com/roach88/closer/internal/store"
)

// CloseOptions holds flags for the close command.
type CloseOptions struct {
	*RootOptions
	Database           string
	Resume             bool
	RunID              string
	Strategy           string
	Threads            int
	ChunkSize          int
	MaxSize            int
	SplitFeeder        bool
	ForceGeneric       bool
	CheckpointEachPass bool
	Progress           bool
	Elements           bool
	Timeout            time.Duration
}

// CloseResult is the outcome of a close command.
type CloseResult struct {
	Problem         string            `json:"problem"`
	RunID           string            `json:"run_id,omitempty"`
	Fingerprint     string            `json:"fingerprint"`
	Size            int               `json:"size"`
	Passes          int               `json:"passes"`
	StopReason      string            `json:"stop_reason"`
	Completed       bool              `json:"completed"`
	Applications    int64             `json:"applications"`
	Degraded        bool              `json:"degraded,omitempty"`
	Elapsed         string            `json:"elapsed"`
	TargetIndex     *int              `json:"target_index,omitempty"`
	FoundIndices    []int             `json:"found_indices,omitempty"`
	FailingEquation string            `json:"failing_equation,omitempty"`
	CloneTerms      map[string]string `json:"clone_terms,omitempty"`
	Elements        [][]int           `json:"elements,omitempty"`
	Terms           []string          `json:"terms,omitempty"`
}

// NewCloseCommand creates the close command.
func NewCloseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CloseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "close <problem>",
		Short: "Compute the closure of a problem",
		Long: `Compute the subalgebra generated by the problem's generators.

Runtime flags override the problem's own settings. With --db, the state
is checkpointed to SQLite when the run ends, after every pass with
--checkpoint-each-pass, and on Ctrl-C. --resume continues the latest
run of the same problem, or the run named by --run.

Examples:
  closer close ./z3.cue
  closer close ./z3.cue --strategy equal_workload --threads 8
  closer close --db ./closer.db --checkpoint-each-pass ./big.cue
  closer close --db ./closer.db --resume ./big.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClose(opts, args[0], cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Database, "db", "", "path to SQLite checkpoint database")
	f.BoolVar(&opts.Resume, "resume", false, "resume from a checkpoint (requires --db)")
	f.StringVar(&opts.RunID, "run", "", "run id to save under or resume")
	f.StringVar(&opts.Strategy, "strategy", "", "serial, parallel, equal_workload or auto")
	f.IntVar(&opts.Threads, "threads", 0, "worker threads (0 = number of CPUs)")
	f.IntVar(&opts.ChunkSize, "chunk-size", engine.DefaultChunkSize, "trailing coordinates per work chunk")
	f.IntVar(&opts.MaxSize, "max-size", 0, "stop once the closure reaches this size")
	f.BoolVar(&opts.SplitFeeder, "split-feeder", false, "run the chunk feeder on its own goroutine")
	f.BoolVar(&opts.ForceGeneric, "force-generic", false, "disable the power-algebra fast path")
	f.BoolVar(&opts.CheckpointEachPass, "checkpoint-each-pass", false, "pause and checkpoint after every pass")
	f.BoolVar(&opts.Progress, "progress", false, "log pass progress and time estimates")
	f.BoolVar(&opts.Elements, "elements", false, "include the elements (and terms) in the output")
	f.DurationVar(&opts.Timeout, "timeout", 0, "interrupt the run after this long")

	return cmd
}

func runClose(opts *CloseOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	if opts.Resume && opts.Database == "" {
		return NewExitError(ExitCommandError, "--resume requires --db")
	}

	p, err := loadValidProblem(path)
	if err != nil {
		return outputCompileError(formatter, err)
	}
	a, err := p.Algebra()
	if err != nil {
		return outputCompileError(formatter, err)
	}
	engineOpts, err := closeOptions(opts, cmd, p)
	if err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}
	engineOpts = append(engineOpts, engine.WithLogger(logger))
	if opts.Progress {
		engineOpts = append(engineOpts, engine.WithReporter(engine.NewLogReporter(logger)))
	}

	ctx, stop := signalContext(cmd, logger)
	defer stop()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var st *store.Store
	run := store.Run{ID: opts.RunID, Fingerprint: p.Fingerprint, Problem: p.Name}
	if opts.Database != "" {
		logger.Debug("opening database", "path", opts.Database)
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		if opts.Resume {
			cp, resumed, err := resumeCheckpoint(ctx, st, p, opts.RunID)
			if err != nil {
				return outputStoreError(formatter, err)
			}
			run = resumed
			engineOpts = append(engineOpts, engine.WithCheckpoint(cp))
			formatter.VerboseLog("Resuming run %s at pass %d with %d elements", run.ID, cp.Pass, len(cp.Elements))
		}
		if run.ID == "" {
			run.ID = store.NewRunID()
		}
	}

	c, err := engine.New(a, p.Generators, engineOpts...)
	if err != nil {
		return outputEngineError(formatter, err)
	}

	start := time.Now()
	for {
		_, err := c.Run(ctx)
		if err != nil {
			if !errors.Is(err, engine.ErrCancelled) {
				return WrapExitError(ExitFailure, "closure failed", err)
			}
			if st != nil {
				if _, saveErr := saveRun(st, run, c); saveErr != nil {
					return WrapExitError(ExitFailure, "failed to checkpoint interrupted run", saveErr)
				}
				_ = formatter.Error(ErrCodeCancelled, fmt.Sprintf("closure interrupted at %d elements; resume with --resume --run %s", c.Size(), run.ID), nil)
			} else {
				_ = formatter.Error(ErrCodeCancelled, fmt.Sprintf("closure interrupted at %d elements", c.Size()), nil)
			}
			return WrapExitError(ExitFailure, "closure interrupted", err)
		}

		if st != nil {
			if run, err = saveRun(st, run, c); err != nil {
				return WrapExitError(ExitCommandError, "failed to save checkpoint", err)
			}
		}
		if c.StopReason() != engine.StopPaused || !opts.CheckpointEachPass {
			break
		}
		formatter.VerboseLog("Pass %d done: %d elements", c.Pass(), c.Size())
	}

	result := closeResult(p, c, time.Since(start), opts.Elements)
	if st != nil {
		result.RunID = run.ID
	}
	return outputCloseSuccess(formatter, result)
}

// closeOptions applies the runtime flags the user set over the problem's
// options. Later options win.
func closeOptions(opts *CloseOptions, cmd *cobra.Command, p *compiler.Problem) ([]engine.Option, error) {
	out := p.Options()
	flags := cmd.Flags()
	if flags.Changed("strategy") {
		s, ok := engine.ParseStrategy(opts.Strategy)
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q (want serial, parallel, equal_workload or auto)", opts.Strategy)
		}
		out = append(out, engine.WithStrategy(s))
	}
	if flags.Changed("threads") {
		out = append(out, engine.WithThreads(opts.Threads))
	}
	if flags.Changed("chunk-size") {
		out = append(out, engine.WithChunkSize(opts.ChunkSize))
	}
	if flags.Changed("max-size") {
		out = append(out, engine.WithMaxSize(opts.MaxSize))
	}
	if opts.SplitFeeder {
		out = append(out, engine.WithSplitFeeder(true))
	}
	if opts.ForceGeneric {
		out = append(out, engine.WithForceGeneric())
	}
	if opts.CheckpointEachPass {
		out = append(out, engine.WithStopEachPass())
	}
	return out, nil
}

// resumeCheckpoint loads the named run, or the latest run of p.
func resumeCheckpoint(ctx context.Context, st *store.Store, p *compiler.Problem, runID string) (ir.Checkpoint, store.Run, error) {
	if runID == "" {
		latest, err := st.LatestRun(ctx, p.Fingerprint)
		if err != nil {
			return ir.Checkpoint{}, store.Run{}, err
		}
		runID = latest.ID
	}
	return st.LoadCheckpoint(ctx, runID, p.Fingerprint)
}

// saveRun checkpoints c. It ignores cancellation so an interrupted run
// is still saved.
func saveRun(st *store.Store, run store.Run, c *engine.Closer) (store.Run, error) {
	run.StopReason = string(c.StopReason())
	if run.StopReason == "" {
		run.StopReason = string(engine.StopPaused)
	}
	return st.SaveCheckpoint(context.Background(), run, c.Checkpoint())
}

// signalContext returns the command context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, func()) {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn("received signal, interrupting closure", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}

func closeResult(p *compiler.Problem, c *engine.Closer, elapsed time.Duration, withElements bool) *CloseResult {
	r := &CloseResult{
		Problem:      p.Name,
		Fingerprint:  p.Fingerprint,
		Size:         c.Size(),
		Passes:       c.Pass(),
		StopReason:   string(c.StopReason()),
		Completed:    c.Completed(),
		Applications: c.Applications(),
		Degraded:     c.Degraded(),
		Elapsed:      engine.FormatDuration(elapsed),
	}
	if i := c.TargetIndex(); i >= 0 {
		r.TargetIndex = &i
	}
	if found := c.FoundIndices(); len(found) > 0 {
		for _, idx := range found {
			if idx >= 0 {
				r.FoundIndices = append(r.FoundIndices, idx)
			}
		}
		sort.Ints(r.FoundIndices)
	}
	if eq := c.FailingEquation(); eq != nil {
		r.FailingEquation = eq.String()
	}
	if terms := c.CloneTerms(); len(terms) > 0 {
		r.CloneTerms = make(map[string]string, len(terms))
		for name, t := range terms {
			r.CloneTerms[name] = t.String()
		}
	}
	if withElements {
		answer := c.Answer()
		terms := c.Terms()
		r.Elements = make([][]int, len(answer))
		for i, e := range answer {
			r.Elements[i] = e.Raw()
			if terms != nil {
				r.Terms = append(r.Terms, terms[e.Key()].String())
			}
		}
	}
	return r
}

func outputCloseSuccess(formatter *OutputFormatter, r *CloseResult) error {
	if formatter.Format == "json" {
		return formatter.Success(r)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Closed %s: %d elements in %d pass(es) (%s)\n\n", r.Problem, r.Size, r.Passes, r.StopReason)

	fields := []Field{
		{"Completed", r.Completed},
		{"Applications", r.Applications},
		{"Elapsed", r.Elapsed},
	}
	if r.RunID != "" {
		fields = append(fields, Field{"Run", r.RunID})
	}
	if r.Degraded {
		fields = append(fields, Field{"Degraded", "chunks were dropped after worker faults"})
	}
	if r.TargetIndex != nil {
		fields = append(fields, Field{"Target index", *r.TargetIndex})
	}
	if len(r.FoundIndices) > 0 {
		fields = append(fields, Field{"Found indices", r.FoundIndices})
	}
	if r.FailingEquation != "" {
		fields = append(fields, Field{"Failing equation", r.FailingEquation})
	}
	formatter.Fields(fields...)

	if len(r.CloneTerms) > 0 {
		names := make([]string, 0, len(r.CloneTerms))
		for name := range r.CloneTerms {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintln(w, "\nClone terms:")
		for _, name := range names {
			fmt.Fprintf(w, "  %s = %s\n", name, r.CloneTerms[name])
		}
	}

	if len(r.Elements) > 0 {
		fmt.Fprintln(w, "\nElements:")
		for i, e := range r.Elements {
			if r.Terms != nil {
				fmt.Fprintf(w, "  %d: %v  %s\n", i, e, r.Terms[i])
			} else {
				fmt.Fprintf(w, "  %d: %v\n", i, e)
			}
		}
	}
	return nil
}

// outputStoreError reports a checkpoint lookup failure.
func outputStoreError(formatter *OutputFormatter, err error) error {
	_ = formatter.Error(ErrCodeStore, err.Error(), nil)
	if store.IsRunNotFound(err) || store.IsFingerprintError(err) {
		return WrapExitError(ExitCommandError, "cannot resume", err)
	}
	return WrapExitError(ExitCommandError, "checkpoint database error", err)
}

// outputEngineError reports a configuration the engine rejected.
func outputEngineError(formatter *OutputFormatter, err error) error {
	var ce *engine.ConfigError
	if errors.As(err, &ce) {
		_ = formatter.Error(ErrCodeClosure, ce.Message, map[string]string{"code": string(ce.Code)})
	} else {
		_ = formatter.Error(ErrCodeClosure, err.Error(), nil)
	}
	return WrapExitError(ExitCommandError, "invalid closure configuration", err)
}
