package ir

import (
	"fmt"
	"strings"
)

// Term is a tree over operation symbols with variables at the leaves.
// Terms are immutable; subterms are shared freely between trees.
type Term interface {
	// IsVariable reports whether the term is a bare variable.
	IsVariable() bool
	// Symbol returns the root operation symbol; zero for variables.
	Symbol() OperationSymbol
	// Children returns the argument subterms; nil for variables and constants.
	Children() []Term
	String() string
	isTerm()
}

// Variable is a named leaf.
type Variable struct {
	Name string
}

func (Variable) isTerm()                 {}
func (Variable) IsVariable() bool        { return true }
func (Variable) Symbol() OperationSymbol { return OperationSymbol{} }
func (Variable) Children() []Term        { return nil }
func (v Variable) String() string        { return v.Name }

// NonVariable applies an operation symbol to argument terms.
// A nullary symbol with no arguments is a constant.
type NonVariable struct {
	Op   OperationSymbol
	Args []Term
}

// NewNonVariable builds op(args...).
func NewNonVariable(op OperationSymbol, args ...Term) *NonVariable {
	return &NonVariable{Op: op, Args: args}
}

// Constant builds the term of a nullary operation.
func Constant(op OperationSymbol) *NonVariable {
	return &NonVariable{Op: op}
}

func (*NonVariable) isTerm()                   {}
func (*NonVariable) IsVariable() bool          { return false }
func (t *NonVariable) Symbol() OperationSymbol { return t.Op }
func (t *NonVariable) Children() []Term        { return t.Args }

func (t *NonVariable) String() string {
	if len(t.Args) == 0 {
		return t.Op.Name
	}
	var sb strings.Builder
	sb.WriteString(t.Op.Name)
	sb.WriteByte('(')
	for i, a := range t.Args {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// TermsEqual reports structural equality of two terms.
func TermsEqual(a, b Term) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.IsVariable() || b.IsVariable() {
		return a.IsVariable() && b.IsVariable() && a.String() == b.String()
	}
	if a.Symbol() != b.Symbol() {
		return false
	}
	ac, bc := a.Children(), b.Children()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !TermsEqual(ac[i], bc[i]) {
			return false
		}
	}
	return true
}

// Depth returns the height of the term tree; variables and constants have depth 0.
func Depth(t Term) int {
	d := 0
	for _, c := range t.Children() {
		d = max(d, Depth(c)+1)
	}
	return d
}

// StandardVariables returns the variables bound to n generators:
// x, y, z for up to three generators and x_0 … x_{n-1} beyond that.
func StandardVariables(n int) []Variable {
	vars := make([]Variable, n)
	if n <= 3 {
		names := []string{"x", "y", "z"}
		for i := range vars {
			vars[i] = Variable{Name: names[i]}
		}
		return vars
	}
	for i := range vars {
		vars[i] = Variable{Name: fmt.Sprintf("x_%d", i)}
	}
	return vars
}

// TermValue encodes a term for canonical JSON:
// {"var":"x"} for variables, {"op":"f","arity":2,"args":[…]} otherwise.
func TermValue(t Term) Value {
	if t.IsVariable() {
		return Object{"var": String(t.String())}
	}
	args := make(Array, len(t.Children()))
	for i, c := range t.Children() {
		args[i] = TermValue(c)
	}
	sym := t.Symbol()
	return Object{
		"op":    String(sym.Name),
		"arity": Int(sym.Arity),
		"args":  args,
	}
}

// TermFromValue decodes the encoding produced by TermValue.
func TermFromValue(v Value) (Term, error) {
	obj, ok := v.(Object)
	if !ok {
		return nil, fmt.Errorf("term: expected object, got %T", v)
	}
	if name, ok := obj["var"]; ok {
		s, ok := name.(String)
		if !ok {
			return nil, fmt.Errorf("term: var must be a string")
		}
		return Variable{Name: string(s)}, nil
	}

	name, ok := obj["op"].(String)
	if !ok {
		return nil, fmt.Errorf("term: missing op")
	}
	arity, ok := obj["arity"].(Int)
	if !ok {
		return nil, fmt.Errorf("term %s: missing arity", name)
	}
	rawArgs, _ := obj["args"].(Array)
	if len(rawArgs) != int(arity) {
		return nil, fmt.Errorf("term %s: arity %d but %d args", name, arity, len(rawArgs))
	}

	var args []Term
	if len(rawArgs) > 0 {
		args = make([]Term, len(rawArgs))
		for i, a := range rawArgs {
			child, err := TermFromValue(a)
			if err != nil {
				return nil, fmt.Errorf("%s arg %d: %w", name, i, err)
			}
			args[i] = child
		}
	}
	return &NonVariable{Op: OperationSymbol{Name: string(name), Arity: int(arity)}, Args: args}, nil
}

// UnmarshalTerm decodes canonical term JSON.
func UnmarshalTerm(data []byte) (Term, error) {
	v, err := UnmarshalValue(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal term: %w", err)
	}
	return TermFromValue(v)
}

// Equation is a pair of terms asserted equal. A failing equation is one
// whose sides evaluate differently in the target of a homomorphism.
type Equation struct {
	Left  Term
	Right Term
}

// String renders "left = right".
func (e Equation) String() string {
	return e.Left.String() + " = " + e.Right.String()
}
