package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/closer/internal/engine"
	"github.com/roach88/closer/internal/testutil"
)

// Golden files live in testdata/golden. Regenerate with:
//
//	go test ./internal/harness -run TestRunWithGolden -update
func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"lat3_universe", "z3_hom_fails"} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, loadTestdataScenario(t, name)))
		})
	}
}

func TestRunWithGolden_FailingScenario(t *testing.T) {
	scenario := loadTestdataScenario(t, "lat3_universe")
	scenario.Assertions = []Assertion{{Type: AssertSize, Count: 2}}

	err := RunWithGolden(t, scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario lat3_universe failed")
}

func TestAssertGolden_NoReference(t *testing.T) {
	err := AssertGolden(t, "empty", NewResult())
	assert.ErrorContains(t, err, "no reference run")
}

func TestClosureSnapshot_Canonical(t *testing.T) {
	c, err := engine.New(testutil.Semilattice(t), testutil.Elements([]int{0}, []int{1}),
		engine.WithStrategy(engine.StrategySerial))
	require.NoError(t, err)
	_, err = c.Run(t.Context())
	require.NoError(t, err)

	data, err := NewClosureSnapshot("plain", c).MarshalCanonical()
	require.NoError(t, err)

	// No terms or images without term tracking or a homomorphism.
	assert.Equal(t,
		`{"closure":[[0],[1],[2]],"completed":true,"passes":1,"scenario":"plain","size":3,"stop_reason":"universe"}`,
		string(data))
}
