package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/closer/internal/engine"
	"github.com/roach88/closer/internal/ir"
)

// ClosureSnapshot captures the reference run of a scenario.
// The serial strategy discovers elements in a fixed order, so the closure
// and its terms are listed in discovery order.
type ClosureSnapshot struct {
	ScenarioName    string
	Size            int
	Passes          int
	StopReason      string
	Completed       bool
	Closure         []ir.Element
	Terms           []ir.Term // parallel to Closure; nil when untracked
	Images          []int     // parallel to Closure; nil without a homomorphism
	FailingEquation string
}

// NewClosureSnapshot captures c under the given name.
func NewClosureSnapshot(name string, c *engine.Closer) *ClosureSnapshot {
	s := &ClosureSnapshot{
		ScenarioName: name,
		Size:         c.Size(),
		Passes:       c.Pass(),
		StopReason:   string(c.StopReason()),
		Completed:    c.Completed(),
		Closure:      c.Answer(),
	}
	if terms := c.Terms(); terms != nil {
		s.Terms = make([]ir.Term, len(s.Closure))
		for i, e := range s.Closure {
			s.Terms[i] = terms[e.Key()]
		}
	}
	if images := c.Homomorphism(); images != nil {
		s.Images = make([]int, len(s.Closure))
		for i, e := range s.Closure {
			s.Images[i] = images[e.Key()]
		}
	}
	if eq := c.FailingEquation(); eq != nil {
		s.FailingEquation = eq.String()
	}
	return s
}

// toCanonical converts a ClosureSnapshot to an ir.Object for canonical JSON
// serialization. Terms are rendered as strings to keep golden files readable.
func (s *ClosureSnapshot) toCanonical() ir.Object {
	closure := make(ir.Array, len(s.Closure))
	for i, e := range s.Closure {
		closure[i] = ir.IntArray(e.Raw())
	}

	obj := ir.Object{
		"scenario":    ir.String(s.ScenarioName),
		"size":        ir.Int(s.Size),
		"passes":      ir.Int(s.Passes),
		"stop_reason": ir.String(s.StopReason),
		"completed":   ir.Bool(s.Completed),
		"closure":     closure,
	}
	if s.Terms != nil {
		terms := make(ir.Array, len(s.Terms))
		for i, t := range s.Terms {
			terms[i] = ir.String(t.String())
		}
		obj["terms"] = terms
	}
	if s.Images != nil {
		obj["images"] = ir.IntArray(s.Images)
	}
	if s.FailingEquation != "" {
		obj["failing_equation"] = ir.String(s.FailingEquation)
	}
	return obj
}

// MarshalCanonical renders the snapshot as RFC 8785 canonical JSON.
func (s *ClosureSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonical())
}

// RunWithGolden executes a scenario and compares the reference closure
// against a golden file. The golden file is stored in
// testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails or the scenario does not pass.
// Test failure (via goldie) occurs if the closure doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		return fmt.Errorf("scenario %s failed: %v", scenario.Name, result.Errors)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the reference run of result against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	if result.reference == nil {
		return fmt.Errorf("scenario %s has no reference run", scenarioName)
	}
	data, err := NewClosureSnapshot(scenarioName, result.reference).MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
