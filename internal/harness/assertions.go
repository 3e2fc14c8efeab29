package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/closer/internal/engine"
	"github.com/roach88/closer/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Runs     []RunSummary // Every run of the scenario for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Runs) > 0 {
		fmt.Fprintf(&buf, "\nRuns:\n")
		for i, r := range e.Runs {
			fmt.Fprintf(&buf, "  [%d] %s: size=%d passes=%d stop=%s\n", i+1, r.Strategy, r.Size, r.Passes, r.StopReason)
		}
	}

	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the reference run.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string
	ref := result.reference

	for i, assertion := range assertions {
		var err error
		if ref == nil {
			err = fmt.Errorf("assertion[%d]: no reference run", i)
		} else {
			switch assertion.Type {
			case AssertSize:
				err = assertSize(ref, assertion)
			case AssertPasses:
				err = assertPasses(ref, assertion)
			case AssertStopReason:
				err = assertStopReason(ref, assertion)
			case AssertContains:
				err = assertContains(ref, assertion)
			case AssertExcludes:
				err = assertExcludes(ref, assertion)
			case AssertTerm:
				err = assertTerm(ref, assertion)
			case AssertFailingEquation:
				err = assertFailingEquation(ref, assertion)
			case AssertCloneTerms:
				err = assertCloneTerms(ref, assertion)
			default:
				err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
			}
		}

		if ae, ok := err.(*AssertionError); ok {
			ae.Runs = result.Runs
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func assertSize(c *engine.Closer, a Assertion) error {
	if c.Size() != a.Count {
		return &AssertionError{
			Type:     AssertSize,
			Expected: fmt.Sprintf("%d elements", a.Count),
			Actual:   fmt.Sprintf("%d elements", c.Size()),
		}
	}
	return nil
}

func assertPasses(c *engine.Closer, a Assertion) error {
	if c.Pass() != a.Count {
		return &AssertionError{
			Type:     AssertPasses,
			Expected: fmt.Sprintf("%d passes", a.Count),
			Actual:   fmt.Sprintf("%d passes", c.Pass()),
		}
	}
	return nil
}

func assertStopReason(c *engine.Closer, a Assertion) error {
	if string(c.StopReason()) != a.Reason {
		return &AssertionError{
			Type:     AssertStopReason,
			Expected: a.Reason,
			Actual:   string(c.StopReason()),
		}
	}
	return nil
}

// assertContains checks that every listed element is in the closure.
func assertContains(c *engine.Closer, a Assertion) error {
	members := memberSet(c)
	var missing []string
	for _, coords := range a.Elements {
		e := ir.NewElement(coords...)
		if !members[e.Key()] {
			missing = append(missing, e.String())
		}
	}
	if len(missing) > 0 {
		return &AssertionError{
			Type:     AssertContains,
			Expected: fmt.Sprintf("closure contains %s", formatElements(a.Elements)),
			Actual:   fmt.Sprintf("missing %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}

// assertExcludes checks that no listed element is in the closure.
func assertExcludes(c *engine.Closer, a Assertion) error {
	members := memberSet(c)
	var present []string
	for _, coords := range a.Elements {
		e := ir.NewElement(coords...)
		if members[e.Key()] {
			present = append(present, e.String())
		}
	}
	if len(present) > 0 {
		return &AssertionError{
			Type:     AssertExcludes,
			Expected: fmt.Sprintf("closure excludes %s", formatElements(a.Elements)),
			Actual:   fmt.Sprintf("found %s", strings.Join(present, ", ")),
		}
	}
	return nil
}

// assertTerm checks the term recorded for an element by its rendering.
func assertTerm(c *engine.Closer, a Assertion) error {
	e := ir.NewElement(a.Element...)
	t := c.Term(e)
	actual := "no term"
	if t != nil {
		actual = t.String()
	}
	if actual != a.Term {
		return &AssertionError{
			Type:     AssertTerm,
			Expected: fmt.Sprintf("%s generated by %s", e, a.Term),
			Actual:   actual,
		}
	}
	return nil
}

// assertFailingEquation checks that the homomorphism failed and, when an
// equation is given, that it is the reported witness.
func assertFailingEquation(c *engine.Closer, a Assertion) error {
	eq := c.FailingEquation()
	if eq == nil {
		return &AssertionError{
			Type:     AssertFailingEquation,
			Expected: "homomorphism does not extend",
			Actual:   fmt.Sprintf("no failing equation (stopped with %s)", c.StopReason()),
		}
	}
	if a.Equation != "" && eq.String() != a.Equation {
		return &AssertionError{
			Type:     AssertFailingEquation,
			Expected: a.Equation,
			Actual:   eq.String(),
		}
	}
	return nil
}

// assertCloneTerms checks that each named clone operation was found.
func assertCloneTerms(c *engine.Closer, a Assertion) error {
	found := c.CloneTerms()
	var missing []string
	for _, name := range a.Names {
		if _, ok := found[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		got := make([]string, 0, len(found))
		for name := range found {
			got = append(got, name)
		}
		sort.Strings(got)
		return &AssertionError{
			Type:     AssertCloneTerms,
			Expected: fmt.Sprintf("terms for %s", strings.Join(a.Names, ", ")),
			Actual:   fmt.Sprintf("terms for [%s]", strings.Join(got, ", ")),
		}
	}
	return nil
}

func memberSet(c *engine.Closer) map[ir.Key]bool {
	answer := c.Answer()
	members := make(map[ir.Key]bool, len(answer))
	for _, e := range answer {
		members[e.Key()] = true
	}
	return members
}

func formatElements(rows [][]int) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = ir.NewElement(r...).String()
	}
	return strings.Join(parts, ", ")
}
