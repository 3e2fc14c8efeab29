package engine

import (
	"fmt"

	"github.com/roach88/closer/internal/alg"
	"github.com/roach88/closer/internal/ir"
)

// maxDiffs caps how many differences a MismatchError lists.
const maxDiffs = 10

// CompareRuns checks that c and other computed the same closure: the same
// pass number, the same element set, the same homomorphism map and, when
// both track terms, terms that evaluate to their element in both runs.
// Discovery order may differ. It returns nil or a *MismatchError.
func (c *Closer) CompareRuns(other *Closer) error {
	d := &differ{}

	if c.pass != other.pass {
		d.add("pass %d vs %d", c.pass, other.pass)
	}
	if len(c.answer) != len(other.answer) {
		d.add("size %d vs %d", len(c.answer), len(other.answer))
	}
	for _, e := range c.answer {
		if _, ok := other.members[e.Key()]; !ok {
			d.add("%s missing from second run", e)
		}
	}
	for _, e := range other.answer {
		if _, ok := c.members[e.Key()]; !ok {
			d.add("%s missing from first run", e)
		}
	}

	if (c.imageList == nil) != (other.imageList == nil) {
		d.add("only one run has a homomorphism")
	} else if c.imageList != nil {
		for i, e := range c.answer {
			j, ok := other.members[e.Key()]
			if ok && c.imageList[i] != other.imageList[j] {
				d.add("%s maps to %d vs %d", e, c.imageList[i], other.imageList[j])
			}
		}
	}

	if c.termList != nil && other.termList != nil {
		c.compareTerms(other, d)
	}

	if len(d.diffs) == 0 {
		return nil
	}
	return &MismatchError{Diffs: d.diffs}
}

// compareTerms evaluates both runs' terms for every shared element.
func (c *Closer) compareTerms(other *Closer, d *differ) {
	ev := alg.NewTupleEvaluator(c.alg)
	binding := c.binding()
	otherBinding := other.binding()
	for i, e := range c.answer {
		j, ok := other.members[e.Key()]
		if !ok {
			continue
		}
		got, err := ev.Eval(c.termList[i], binding)
		if err != nil {
			d.add("%s: %v", e, err)
			continue
		}
		want, err := ev.Eval(other.termList[j], otherBinding)
		if err != nil {
			d.add("%s: %v", e, err)
			continue
		}
		if ir.KeyOf(got) != ir.KeyOf(want) {
			d.add("term %s evaluates to %s vs term %s to %s", c.termList[i], ir.Wrap(got), other.termList[j], ir.Wrap(want))
		} else if ir.KeyOf(got) != e.Key() {
			d.add("term %s evaluates to %s, not %s", c.termList[i], ir.Wrap(got), e)
		}
	}
}

// binding maps each generator variable to its generator.
func (c *Closer) binding() map[string][]int {
	b := make(map[string][]int, len(c.gens))
	for i, v := range c.vars {
		b[v.Name] = c.gens[i].Raw()
	}
	return b
}

type differ struct {
	diffs   []string
	dropped int
}

func (d *differ) add(format string, args ...any) {
	if len(d.diffs) < maxDiffs {
		d.diffs = append(d.diffs, fmt.Sprintf(format, args...))
		return
	}
	d.dropped++
	if d.dropped == 1 {
		d.diffs = append(d.diffs, "...")
	}
}
