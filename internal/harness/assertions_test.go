package harness

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/closer/internal/engine"
	"github.com/roach88/closer/internal/testutil"
)

// lat3Result closes the 3-element semilattice serially with terms.
func lat3Result(t *testing.T) *Result {
	t.Helper()
	c, err := engine.New(testutil.Semilattice(t), testutil.Elements([]int{0}, []int{1}),
		engine.WithStrategy(engine.StrategySerial), engine.WithTerms())
	require.NoError(t, err)
	_, err = c.Run(t.Context())
	require.NoError(t, err)

	r := NewResult()
	r.reference = c
	r.Runs = append(r.Runs, summarize("reference", c))
	return r
}

func TestEvaluateAssertions_Passing(t *testing.T) {
	r := lat3Result(t)

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertSize, Count: 3},
		{Type: AssertPasses, Count: 1},
		{Type: AssertStopReason, Reason: "universe"},
		{Type: AssertContains, Elements: [][]int{{0}, {2}}},
		{Type: AssertExcludes, Elements: [][]int{{3}}},
		{Type: AssertTerm, Element: []int{0}, Term: "x"},
		{Type: AssertTerm, Element: []int{2}, Term: "join(x,y)"},
	})
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Failing(t *testing.T) {
	r := lat3Result(t)

	tests := []struct {
		name      string
		assertion Assertion
		want      []string
	}{
		{
			name:      "size",
			assertion: Assertion{Type: AssertSize, Count: 2},
			want:      []string{"Assertion failed: size", "Expected: 2 elements", "Actual: 3 elements"},
		},
		{
			name:      "passes",
			assertion: Assertion{Type: AssertPasses, Count: 2},
			want:      []string{"Expected: 2 passes", "Actual: 1 passes"},
		},
		{
			name:      "stop_reason",
			assertion: Assertion{Type: AssertStopReason, Reason: "fixed_point"},
			want:      []string{"Expected: fixed_point", "Actual: universe"},
		},
		{
			name:      "contains",
			assertion: Assertion{Type: AssertContains, Elements: [][]int{{2}, {5}}},
			want:      []string{"Expected: closure contains [2], [5]", "Actual: missing [5]"},
		},
		{
			name:      "excludes",
			assertion: Assertion{Type: AssertExcludes, Elements: [][]int{{1}, {7}}},
			want:      []string{"Actual: found [1]"},
		},
		{
			name:      "term",
			assertion: Assertion{Type: AssertTerm, Element: []int{7}, Term: "x"},
			want:      []string{"Expected: [7] generated by x", "Actual: no term"},
		},
		{
			name:      "failing_equation",
			assertion: Assertion{Type: AssertFailingEquation},
			want:      []string{"Actual: no failing equation (stopped with universe)"},
		},
		{
			name:      "clone_terms",
			assertion: Assertion{Type: AssertCloneTerms, Names: []string{"f"}},
			want:      []string{"Expected: terms for f", "Actual: terms for []"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(r, []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			for _, w := range tt.want {
				assert.Contains(t, errs[0], w)
			}
			assert.Contains(t, errs[0], "Runs:")
		})
	}
}

func TestEvaluateAssertions_NoReference(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{{Type: AssertSize, Count: 3}})
	require.Len(t, errs, 1)
	assert.Equal(t, "assertion[0]: no reference run", errs[0])
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	errs := EvaluateAssertions(lat3Result(t), []Assertion{{Type: "trace_order"}})
	require.Len(t, errs, 1)
	assert.Equal(t, `assertion[0]: unknown assertion type "trace_order"`, errs[0])
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertSize,
		Expected: "3 elements",
		Actual:   "2 elements",
		Runs:     []RunSummary{{Strategy: "reference", Size: 2, Passes: 1, StopReason: "fixed_point"}},
	}

	lines := strings.Split(err.Error(), "\n")
	assert.Equal(t, "Assertion failed: size", lines[0])
	assert.Equal(t, "  Expected: 3 elements", lines[1])
	assert.Equal(t, "  Actual: 2 elements", lines[2])
	assert.Equal(t, "  [1] reference: size=2 passes=1 stop=fixed_point", lines[5])
}
