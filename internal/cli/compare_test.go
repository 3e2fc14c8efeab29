package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareAgree(t *testing.T) {
	out, _, err := execute(t, NewCompareCommand(&RootOptions{Format: "text"}), "--threads", "3", problemPath("z3_subgroup"))
	require.NoError(t, err)

	assert.Contains(t, out, "reference")
	assert.Contains(t, out, "parallel")
	assert.Contains(t, out, "equal_workload")
	assert.Contains(t, out, "size=27")
	assert.Contains(t, out, "✓ All strategies agree")
}

func TestCompareJSONWithResume(t *testing.T) {
	out, _, err := execute(t, NewCompareCommand(&RootOptions{Format: "json"}),
		"--strategies", "parallel,auto", "--threads", "2", "--chunk-size", "2", "--resume", problemPath("lat3"))
	require.NoError(t, err)

	var result CompareResult
	assert.Equal(t, "ok", decodeData(t, out, &result))
	assert.True(t, result.Agree)
	require.Len(t, result.Runs, 4)
	assert.Equal(t, "reference", result.Runs[0].Strategy)
	assert.Equal(t, "resume", result.Runs[3].Strategy)
	for _, r := range result.Runs {
		assert.Equal(t, 3, r.Size, r.Strategy)
		assert.Equal(t, "universe", r.StopReason, r.Strategy)
	}
}

func TestCompareEarlyStop(t *testing.T) {
	out, _, err := execute(t, NewCompareCommand(&RootOptions{Format: "text"}), "--threads", "3", problemPath("z3_hom_fails"))
	require.NoError(t, err)
	assert.Contains(t, out, "stop=homomorphism_failed")
}

func TestCompareUnknownStrategy(t *testing.T) {
	_, _, err := execute(t, NewCompareCommand(&RootOptions{Format: "text"}), "--strategies", "parallel,fastest", problemPath("lat3"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown strategy "fastest"`)
}

func TestCompareInvalidProblem(t *testing.T) {
	path := writeProblem(t, lat3Algebra+`
problem: {
	algebra:    "lat3"
	generators: [[3]]
}
`)
	out, _, err := execute(t, NewCompareCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E104")
}
