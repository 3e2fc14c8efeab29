package harness

import (
	"fmt"

	"github.com/roach88/closer/internal/alg"
	"github.com/roach88/closer/internal/compiler"
	"github.com/roach88/closer/internal/engine"
	"github.com/roach88/closer/internal/ir"
	"github.com/roach88/closer/internal/seq"
)

// maxClosureCheck bounds the tuples evaluated when re-checking that a
// completed closure is closed under an operation.
const maxClosureCheck = 1 << 20

// checkInvariants verifies properties every run must have regardless of
// strategy: generators come first, a completed closure is closed under
// every operation, terms evaluate to their elements, images agree with
// terms, and a failing equation is a real witness.
func checkInvariants(label string, c *engine.Closer, p *compiler.Problem, result *Result) {
	for _, err := range invariantErrors(c, p) {
		result.AddError(fmt.Sprintf("%s: %v", label, err))
	}
}

func invariantErrors(c *engine.Closer, p *compiler.Problem) []error {
	var errs []error
	answer := c.Answer()
	gens := c.Generators()

	if len(answer) < len(gens) {
		return []error{fmt.Errorf("closure has %d elements but there are %d generators", len(answer), len(gens))}
	}
	for i, g := range gens {
		if !answer[i].Equal(g) {
			errs = append(errs, fmt.Errorf("element %d is %s, want generator %s", i, answer[i], g))
		}
	}

	if closedFully(c) {
		errs = append(errs, closedness(c.Algebra(), answer)...)
	}

	homMap := c.Homomorphism()
	binding := make(map[string][]int, len(gens))
	var images map[string]int
	if homMap != nil {
		images = make(map[string]int, len(gens))
	}
	for i, v := range c.Variables() {
		binding[v.Name] = gens[i].Raw()
		if images != nil {
			images[v.Name] = homMap[gens[i].Key()]
		}
	}

	if terms := c.Terms(); terms != nil {
		ev := alg.NewTupleEvaluator(c.Algebra())
		for _, e := range answer {
			t := terms[e.Key()]
			got, err := ev.Eval(t, binding)
			if err != nil {
				errs = append(errs, fmt.Errorf("term %s: %w", t, err))
				continue
			}
			if ir.KeyOf(got) != e.Key() {
				errs = append(errs, fmt.Errorf("term %s evaluates to %s, not %s", t, ir.Wrap(got), e))
			}
			if homMap == nil {
				continue
			}
			img, err := alg.Eval(t, p.Homomorphism.Target, images)
			if err != nil {
				errs = append(errs, fmt.Errorf("term %s in target: %w", t, err))
			} else if img != homMap[e.Key()] {
				errs = append(errs, fmt.Errorf("%s maps to %d but its term %s evaluates to %d", e, homMap[e.Key()], t, img))
			}
		}
	}

	if eq := c.FailingEquation(); eq != nil {
		if err := witness(c.Algebra(), p.Homomorphism, *eq, binding, images); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// closedness re-applies every operation to every tuple of a completed
// closure. Operations with too many tuples are skipped.
func closedness(a alg.Algebra, answer []ir.Element) []error {
	members := make(map[ir.Key]bool, len(answer))
	for _, e := range answer {
		members[e.Key()] = true
	}

	var errs []error
	for _, op := range a.Operations() {
		r := op.Arity()
		work, ok := alg.IntPow(len(answer), r)
		if r == 0 || !ok || work > maxClosureCheck {
			continue
		}
		argIdx := make([]int, r)
		args := make([][]int, r)
		inc := seq.NewSequence(argIdx, len(answer)-1)
		for {
			for j, idx := range argIdx {
				args[j] = answer[idx].Raw()
			}
			if v := op.ValueAt(args); !members[ir.KeyOf(v)] {
				errs = append(errs, fmt.Errorf("not closed: %s%v = %s", op.Symbol().Name, argIdx, ir.Wrap(v)))
				break
			}
			if !inc.Increment() {
				break
			}
		}
	}
	return errs
}

// witness checks that eq holds in the algebra but not in the target.
func witness(a alg.Algebra, h *compiler.Homomorphism, eq ir.Equation, binding map[string][]int, images map[string]int) error {
	if h == nil {
		return fmt.Errorf("failing equation %s without a homomorphism", eq)
	}
	ev := alg.NewTupleEvaluator(a)
	left, err := ev.Eval(eq.Left, binding)
	if err != nil {
		return fmt.Errorf("failing equation %s: %w", eq, err)
	}
	right, err := ev.Eval(eq.Right, binding)
	if err != nil {
		return fmt.Errorf("failing equation %s: %w", eq, err)
	}
	if ir.KeyOf(left) != ir.KeyOf(right) {
		return fmt.Errorf("failing equation %s does not hold: %s vs %s", eq, ir.Wrap(left), ir.Wrap(right))
	}

	li, err := alg.Eval(eq.Left, h.Target, images)
	if err != nil {
		return fmt.Errorf("failing equation %s in target: %w", eq, err)
	}
	ri, err := alg.Eval(eq.Right, h.Target, images)
	if err != nil {
		return fmt.Errorf("failing equation %s in target: %w", eq, err)
	}
	if li == ri {
		return fmt.Errorf("failing equation %s holds in the target", eq)
	}
	return nil
}
