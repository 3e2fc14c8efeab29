package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closeJSON(t *testing.T, args ...string) CloseResult {
	t.Helper()
	out, _, err := execute(t, NewCloseCommand(&RootOptions{Format: "json"}), args...)
	require.NoError(t, err)

	var result CloseResult
	require.Equal(t, "ok", decodeData(t, out, &result))
	return result
}

func TestCloseText(t *testing.T) {
	out, _, err := execute(t, NewCloseCommand(&RootOptions{Format: "text"}), "--strategy", "serial", "--elements", problemPath("lat3"))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Closed problem: 3 elements in 1 pass(es) (universe)")
	assert.Contains(t, out, "Completed:")
	assert.Contains(t, out, "2: [2]  join(x,y)")
}

func TestCloseStrategies(t *testing.T) {
	for _, strategy := range []string{"serial", "parallel", "equal_workload", "auto"} {
		t.Run(strategy, func(t *testing.T) {
			result := closeJSON(t, "--strategy", strategy, "--threads", "3", "--elements", problemPath("z3_subgroup"))

			assert.Equal(t, 27, result.Size)
			assert.Equal(t, "fixed_point", result.StopReason)
			assert.True(t, result.Completed)
			assert.False(t, result.Degraded)
			assert.Len(t, result.Elements, 27)
			assert.Len(t, result.Terms, 27)
			assert.Equal(t, []int{1, 0, 0, 1}, result.Elements[0])
			assert.Equal(t, "x", result.Terms[0])
		})
	}
}

func TestCloseSplitFeederAndGeneric(t *testing.T) {
	result := closeJSON(t, "--strategy", "parallel", "--threads", "4", "--chunk-size", "2",
		"--split-feeder", "--force-generic", problemPath("z3_subgroup"))
	assert.Equal(t, 27, result.Size)
	assert.Empty(t, result.Elements, "elements only with --elements")
}

func TestCloseEarlyStops(t *testing.T) {
	found := closeJSON(t, "--strategy", "serial", problemPath("z3_find"))
	assert.Equal(t, "element_found", found.StopReason)
	require.NotNil(t, found.TargetIndex)
	assert.Less(t, *found.TargetIndex, found.Size)

	hom := closeJSON(t, "--strategy", "serial", problemPath("z3_hom_fails"))
	assert.Equal(t, "homomorphism_failed", hom.StopReason)
	assert.Equal(t, "y = plus(x,x)", hom.FailingEquation)

	clone := closeJSON(t, "--threads", "2", problemPath("z3_clone"))
	assert.Equal(t, "clone_found", clone.StopReason)
	assert.Contains(t, clone.CloneTerms, "f")
}

func TestCloseMaxSize(t *testing.T) {
	result := closeJSON(t, "--strategy", "serial", "--max-size", "5", problemPath("z3_subgroup"))
	assert.Equal(t, "size_limit", result.StopReason)
	assert.False(t, result.Completed)
	assert.GreaterOrEqual(t, result.Size, 5)
}

func TestCloseCheckpointAndResume(t *testing.T) {
	db := filepath.Join(t.TempDir(), "closer.db")

	first := closeJSON(t, "--db", db, "--strategy", "serial", "--checkpoint-each-pass", problemPath("z3_subgroup"))
	assert.Equal(t, 27, first.Size)
	assert.Equal(t, "fixed_point", first.StopReason)
	require.NotEmpty(t, first.RunID)

	resumed := closeJSON(t, "--db", db, "--resume", problemPath("z3_subgroup"))
	assert.Equal(t, first.RunID, resumed.RunID)
	assert.Equal(t, 27, resumed.Size)
	assert.Equal(t, first.Passes, resumed.Passes)
	assert.True(t, resumed.Completed)
}

func TestCloseInterruptedThenResumed(t *testing.T) {
	db := filepath.Join(t.TempDir(), "closer.db")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, _, err := executeContext(t, ctx, NewCloseCommand(&RootOptions{Format: "text"}),
		"--db", db, "--run", "run-1", "--strategy", "serial", problemPath("z3_subgroup"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E022]")
	assert.Contains(t, out, "--resume --run run-1")

	runsOut, _, err := execute(t, NewRunsCommand(&RootOptions{Format: "json"}), "--db", db)
	require.NoError(t, err)
	var runs []RunInfo
	decodeData(t, runsOut, &runs)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "paused", runs[0].StopReason)
	assert.False(t, runs[0].Completed)

	resumed := closeJSON(t, "--db", db, "--resume", "--run", "run-1", "--strategy", "parallel", "--threads", "2", problemPath("z3_subgroup"))
	assert.Equal(t, "run-1", resumed.RunID)
	assert.Equal(t, 27, resumed.Size)
	assert.Equal(t, "fixed_point", resumed.StopReason)
}

func TestCloseResumeErrors(t *testing.T) {
	t.Run("requires db", func(t *testing.T) {
		_, _, err := execute(t, NewCloseCommand(&RootOptions{Format: "text"}), "--resume", problemPath("lat3"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "--resume requires --db")
	})

	t.Run("no run", func(t *testing.T) {
		db := filepath.Join(t.TempDir(), "closer.db")
		out, _, err := execute(t, NewCloseCommand(&RootOptions{Format: "text"}), "--db", db, "--resume", problemPath("lat3"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "cannot resume")
		assert.Contains(t, out, "Error [E020]")
	})

	t.Run("other problem", func(t *testing.T) {
		db := filepath.Join(t.TempDir(), "closer.db")
		closeJSON(t, "--db", db, "--run", "shared", problemPath("lat3"))

		_, _, err := execute(t, NewCloseCommand(&RootOptions{Format: "text"}), "--db", db, "--resume", "--run", "shared", problemPath("z3_find"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "was saved for problem")
	})
}

func TestCloseBadInput(t *testing.T) {
	_, _, err := execute(t, NewCloseCommand(&RootOptions{Format: "text"}), "--strategy", "random", problemPath("lat3"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown strategy "random"`)

	out, _, err := execute(t, NewCloseCommand(&RootOptions{Format: "text"}), "/nonexistent/problem.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")

	_, _, err = execute(t, NewCloseCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestCloseBadThreads(t *testing.T) {
	out, _, err := execute(t, NewCloseCommand(&RootOptions{Format: "text"}), "--threads=-1", problemPath("lat3"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E021]")
}
