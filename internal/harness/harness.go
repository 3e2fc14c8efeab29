package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/closer/internal/alg"
	"github.com/roach88/closer/internal/compiler"
	"github.com/roach88/closer/internal/engine"
	"github.com/roach88/closer/internal/store"
)

// Harness is the scenario execution engine.
// The serial strategy is deterministic, so its run is the reference every
// other strategy is compared against and the one assertions see.
type Harness struct {
	logger *slog.Logger
	store  *store.Store
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Load, compile and validate the problem
// 2. Close it serially as the reference
// 3. Close it under each scenario strategy and compare with the reference
// 4. Optionally close it pass by pass through a checkpoint store
// 5. Evaluate assertions against the reference
//
// An error is returned only when the scenario cannot be executed at all;
// disagreements and failed assertions are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a context that cancels every closure.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	p, err := LoadProblem(scenario.Problem)
	if err != nil {
		return nil, err
	}
	return RunProblem(ctx, scenario, p)
}

// RunProblem runs scenario against an already compiled and validated
// problem. scenario.Problem is not read.
func RunProblem(ctx context.Context, scenario *Scenario, p *compiler.Problem) (*Result, error) {
	a, err := p.Algebra()
	if err != nil {
		return nil, fmt.Errorf("problem %s: %w", p.Name, err)
	}

	// Fresh in-memory store per scenario for checkpoint round trips
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		store:  st,
	}

	result := NewResult()
	ref, err := h.close(ctx, a, p, engine.WithStrategy(engine.StrategySerial))
	if err != nil {
		return nil, fmt.Errorf("reference run: %w", err)
	}
	result.reference = ref
	result.Runs = append(result.Runs, summarize("reference", ref))
	checkInvariants("reference", ref, p, result)

	for _, strategy := range scenario.strategies() {
		opts := []engine.Option{engine.WithStrategy(strategy)}
		if scenario.Threads > 0 {
			opts = append(opts, engine.WithThreads(scenario.Threads))
		}
		if scenario.ChunkSize > 0 {
			opts = append(opts, engine.WithChunkSize(scenario.ChunkSize))
		}

		label := strategy.String()
		c, err := h.close(ctx, a, p, opts...)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			result.AddError(fmt.Sprintf("%s: %v", label, err))
			continue
		}
		result.Runs = append(result.Runs, summarize(label, c))
		checkInvariants(label, c, p, result)
		compareWithReference(label, ref, c, result)

		h.logger.Info("strategy checked",
			"scenario", scenario.Name,
			"strategy", label,
			"size", c.Size(),
			"stop_reason", string(c.StopReason()),
		)
	}

	if scenario.Resume {
		c, err := h.closeByPass(ctx, a, p)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			result.AddError(fmt.Sprintf("resume: %v", err))
		} else {
			result.Runs = append(result.Runs, summarize("resume", c))
			checkInvariants("resume", c, p, result)
			compareWithReference("resume", ref, c, result)
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// LoadProblem compiles and validates the CUE problem file at path.
func LoadProblem(path string) (*compiler.Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem file: %w", err)
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	p, err := compiler.Compile(v)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	if verrs := compiler.Validate(p); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, ve := range verrs {
			errs[i] = ve
		}
		return nil, fmt.Errorf("validate %s: %w", path, errors.Join(errs...))
	}
	return p, nil
}

// close runs the problem to completion with extra options applied last.
func (h *Harness) close(ctx context.Context, a alg.Algebra, p *compiler.Problem, opts ...engine.Option) (*engine.Closer, error) {
	all := append(p.Options(), engine.WithLogger(h.logger))
	all = append(all, opts...)
	c, err := engine.New(a, p.Generators, all...)
	if err != nil {
		return nil, err
	}
	if _, err := c.Run(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// closeByPass closes the problem one pass at a time. Every pause is saved
// to the store and the next pass starts from a fresh closer restored from
// the reloaded checkpoint.
func (h *Harness) closeByPass(ctx context.Context, a alg.Algebra, p *compiler.Problem) (*engine.Closer, error) {
	run := store.Run{ID: store.NewRunID(), Fingerprint: p.Fingerprint, Problem: p.Name}
	var resumeFrom []engine.Option

	for {
		opts := append([]engine.Option{
			engine.WithStrategy(engine.StrategySerial),
			engine.WithStopEachPass(),
		}, resumeFrom...)
		c, err := h.close(ctx, a, p, opts...)
		if err != nil {
			return nil, err
		}
		if c.StopReason() != engine.StopPaused {
			return c, nil
		}

		run.StopReason = string(c.StopReason())
		if run, err = h.store.SaveCheckpoint(ctx, run, c.Checkpoint()); err != nil {
			return nil, err
		}
		cp, _, err := h.store.LoadCheckpoint(ctx, run.ID, p.Fingerprint)
		if err != nil {
			return nil, err
		}
		resumeFrom = []engine.Option{engine.WithCheckpoint(cp)}
	}
}

// compareWithReference checks a run against the serial reference. Runs
// that closed fully must compute the same closure; runs that stopped
// early must stop for the same reason, though discovery order may leave
// them with different elements.
func compareWithReference(label string, ref, c *engine.Closer, result *Result) {
	if c.StopReason() != ref.StopReason() {
		result.AddError(fmt.Sprintf("%s: stopped with %s, reference stopped with %s", label, c.StopReason(), ref.StopReason()))
		return
	}
	if !closedFully(ref) {
		return
	}
	if err := c.CompareRuns(ref); err != nil {
		result.AddError(fmt.Sprintf("%s: %v", label, err))
	}
}

// closedFully reports whether c holds the whole subalgebra.
func closedFully(c *engine.Closer) bool {
	return c.StopReason() == engine.StopFixedPoint || c.StopReason() == engine.StopUniverse
}
