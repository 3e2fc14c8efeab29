package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/closer/internal/alg"
	"github.com/roach88/closer/internal/engine"
	"github.com/roach88/closer/internal/ir"
)

// Problem is a compiled closure problem: the algebra to close in, the
// generators and every search option.
type Problem struct {
	Name       string
	Root       *alg.SmallAlgebra
	Power      int
	Generators []ir.Element

	Terms     bool
	Strategy  engine.Strategy
	Threads   int
	ChunkSize int
	MaxSize   int

	Find         *ir.Element
	FindAll      []ir.Element
	Homomorphism *Homomorphism
	Constraint   *Constraint
	Clone        []alg.IntOperation

	// Fingerprint identifies the closure state this problem produces.
	// Checkpoints are only resumed against an equal fingerprint.
	Fingerprint string
}

// Homomorphism maps generator i to Images[i] in Target.
type Homomorphism struct {
	Target *alg.SmallAlgebra
	Images []int
}

// Constraint is a blocks/values element search.
type Constraint struct {
	Blocks [][]int
	Values [][]int
}

// Compile reads every algebra under "algebra" and the problem under
// "problem" from a CUE value.
func Compile(v cue.Value) (*Problem, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	algebras := make(map[string]*alg.SmallAlgebra)
	algVal := v.LookupPath(cue.ParsePath("algebra"))
	if algVal.Exists() {
		iter, err := algVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			a, err := CompileAlgebra(iter.Value())
			if err != nil {
				return nil, err
			}
			algebras[iter.Label()] = a
		}
	}

	probVal := v.LookupPath(cue.ParsePath("problem"))
	if !probVal.Exists() {
		return nil, &CompileError{
			Field:   "problem",
			Message: "problem is required",
			Pos:     v.Pos(),
		}
	}
	return CompileProblem(probVal, algebras)
}

// CompileProblem parses a problem struct, resolving algebra names against
// algebras. Shape errors are reported here; cross-field checks are left
// to Validate.
func CompileProblem(v cue.Value, algebras map[string]*alg.SmallAlgebra) (*Problem, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	p := &Problem{
		Name:      label(v),
		Power:     1,
		Strategy:  engine.StrategyAuto,
		ChunkSize: engine.DefaultChunkSize,
	}

	root, err := lookupAlgebra(v, "algebra", "algebra", algebras)
	if err != nil {
		return nil, err
	}
	p.Root = root

	if err := optionalInt(v, "power", &p.Power); err != nil {
		return nil, err
	}
	if p.Power < 1 {
		return nil, &CompileError{Field: "power", Message: fmt.Sprintf("power must be positive, got %d", p.Power), Pos: v.Pos()}
	}

	gensVal := v.LookupPath(cue.ParsePath("generators"))
	if !gensVal.Exists() {
		return nil, &CompileError{Field: "generators", Message: "generators are required", Pos: v.Pos()}
	}
	gens, err := intMatrix(gensVal, "generators")
	if err != nil {
		return nil, err
	}
	p.Generators = elements(gens)

	if t := v.LookupPath(cue.ParsePath("terms")); t.Exists() {
		b, err := t.Bool()
		if err != nil {
			return nil, &CompileError{Field: "terms", Message: "terms must be a bool", Pos: t.Pos()}
		}
		p.Terms = b
	}

	if s := v.LookupPath(cue.ParsePath("strategy")); s.Exists() {
		name, err := s.String()
		if err != nil {
			return nil, &CompileError{Field: "strategy", Message: "strategy must be a string", Pos: s.Pos()}
		}
		strategy, ok := engine.ParseStrategy(name)
		if !ok {
			return nil, &CompileError{
				Field:   "strategy",
				Message: fmt.Sprintf("unknown strategy %q (want serial, parallel, equal_workload or auto)", name),
				Pos:     s.Pos(),
			}
		}
		p.Strategy = strategy
	}

	ints := []struct {
		field string
		dst   *int
	}{
		{"threads", &p.Threads},
		{"chunk_size", &p.ChunkSize},
		{"max_size", &p.MaxSize},
	}
	for _, f := range ints {
		if err := optionalInt(v, f.field, f.dst); err != nil {
			return nil, err
		}
	}

	if f := v.LookupPath(cue.ParsePath("find")); f.Exists() {
		coords, err := intList(f, "find")
		if err != nil {
			return nil, err
		}
		e := ir.NewElement(coords...)
		p.Find = &e
	}
	if f := v.LookupPath(cue.ParsePath("find_all")); f.Exists() {
		rows, err := intMatrix(f, "find_all")
		if err != nil {
			return nil, err
		}
		p.FindAll = elements(rows)
	}

	if h := v.LookupPath(cue.ParsePath("homomorphism")); h.Exists() {
		target, err := lookupAlgebra(h, "target", "homomorphism.target", algebras)
		if err != nil {
			return nil, err
		}
		imagesVal := h.LookupPath(cue.ParsePath("images"))
		if !imagesVal.Exists() {
			return nil, &CompileError{Field: "homomorphism.images", Message: "images are required", Pos: h.Pos()}
		}
		images, err := intList(imagesVal, "homomorphism.images")
		if err != nil {
			return nil, err
		}
		p.Homomorphism = &Homomorphism{Target: target, Images: images}
	}

	if c := v.LookupPath(cue.ParsePath("constraint")); c.Exists() {
		p.Constraint = &Constraint{}
		if b := c.LookupPath(cue.ParsePath("blocks")); b.Exists() {
			if p.Constraint.Blocks, err = intMatrix(b, "constraint.blocks"); err != nil {
				return nil, err
			}
		}
		if vals := c.LookupPath(cue.ParsePath("values")); vals.Exists() {
			if p.Constraint.Values, err = intMatrix(vals, "constraint.values"); err != nil {
				return nil, err
			}
		}
	}

	if c := v.LookupPath(cue.ParsePath("clone")); c.Exists() {
		ops, err := compileOperations(c, root.Size(), "clone")
		if err != nil {
			return nil, err
		}
		p.Clone = ops
	}

	fp, err := ir.Fingerprint(p.Describe())
	if err != nil {
		return nil, fmt.Errorf("problem %s: %w", p.Name, err)
	}
	p.Fingerprint = fp
	return p, nil
}

// lookupAlgebra resolves the string at field to a compiled algebra.
func lookupAlgebra(v cue.Value, path, field string, algebras map[string]*alg.SmallAlgebra) (*alg.SmallAlgebra, error) {
	nameVal := v.LookupPath(cue.ParsePath(path))
	if !nameVal.Exists() {
		return nil, &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must name an algebra", Pos: nameVal.Pos()}
	}
	a, ok := algebras[name]
	if !ok {
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("unknown algebra %q", name), Pos: nameVal.Pos()}
	}
	return a, nil
}

func optionalInt(v cue.Value, field string, dst *int) error {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return nil
	}
	n, err := intValue(f, field)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func elements(rows [][]int) []ir.Element {
	out := make([]ir.Element, len(rows))
	for i, r := range rows {
		out[i] = ir.NewElement(r...)
	}
	return out
}

// Algebra returns Root^Power. Every problem runs on a power so the
// table-driven fast path applies.
func (p *Problem) Algebra() (*alg.Power, error) {
	return alg.NewPower(p.Root, p.Power)
}

// TracksTerms reports whether the run records terms, either because the
// problem asks for them or because a search option needs them.
func (p *Problem) TracksTerms() bool {
	return p.Terms || p.Homomorphism != nil || len(p.Clone) > 0
}

// Options translates the problem into engine options. Runtime settings
// such as logging are appended by the caller.
func (p *Problem) Options() []engine.Option {
	opts := []engine.Option{
		engine.WithStrategy(p.Strategy),
		engine.WithThreads(p.Threads),
		engine.WithChunkSize(p.ChunkSize),
	}
	if p.Terms {
		opts = append(opts, engine.WithTerms())
	}
	if p.MaxSize > 0 {
		opts = append(opts, engine.WithMaxSize(p.MaxSize))
	}
	if p.Find != nil {
		opts = append(opts, engine.WithElementToFind(*p.Find))
	}
	if len(p.FindAll) > 0 {
		opts = append(opts, engine.WithElementsToFind(p.FindAll))
	}
	if h := p.Homomorphism; h != nil {
		opts = append(opts, engine.WithHomomorphism(h.Target, h.Images))
	}
	if c := p.Constraint; c != nil {
		opts = append(opts, engine.WithConstraint(c.Blocks, c.Values))
	}
	if len(p.Clone) > 0 {
		opts = append(opts, engine.WithCloneOperations(p.Root, p.Clone...))
	}
	return opts
}

// Describe captures what determines the closure state: the algebra, the
// power, the generators, term tracking and the homomorphism. Strategy and
// search targets are left out, so a checkpoint resumes under any of them.
func (p *Problem) Describe() ir.Object {
	obj := ir.Object{
		"algebra":    describeAlgebra(p.Root),
		"power":      ir.Int(p.Power),
		"generators": elementArray(p.Generators),
		"terms":      ir.Bool(p.TracksTerms()),
	}
	if h := p.Homomorphism; h != nil {
		obj["homomorphism"] = ir.Object{
			"target": describeAlgebra(h.Target),
			"images": ir.IntArray(h.Images),
		}
	}
	return obj
}

func describeAlgebra(a *alg.SmallAlgebra) ir.Object {
	ops := make(ir.Array, 0, len(a.IntOperations()))
	for _, op := range a.IntOperations() {
		ops = append(ops, ir.Object{
			"name":  ir.String(op.Symbol().Name),
			"arity": ir.Int(op.Arity()),
			"table": ir.IntArray(op.Table()),
		})
	}
	return ir.Object{
		"name":       ir.String(a.Name()),
		"size":       ir.Int(a.Size()),
		"operations": ops,
	}
}

func elementArray(es []ir.Element) ir.Array {
	arr := make(ir.Array, len(es))
	for i, e := range es {
		arr[i] = ir.IntArray(e.Raw())
	}
	return arr
}
