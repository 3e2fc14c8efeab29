package store

import (
	"fmt"

	"github.com/roach88/closer/internal/ir"
)

// marshalCoords converts an element to canonical JSON TEXT for storage.
func marshalCoords(e ir.Element) (string, error) {
	data, err := ir.MarshalCanonical(e)
	if err != nil {
		return "", fmt.Errorf("marshal coords: %w", err)
	}
	return string(data), nil
}

// unmarshalCoords parses canonical JSON TEXT back into an element.
func unmarshalCoords(data string) (ir.Element, error) {
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return ir.Element{}, fmt.Errorf("unmarshal coords: %w", err)
	}
	arr, ok := v.(ir.Array)
	if !ok {
		return ir.Element{}, fmt.Errorf("unmarshal coords: expected array, got %T", v)
	}
	coords, err := arr.Ints()
	if err != nil {
		return ir.Element{}, fmt.Errorf("unmarshal coords: %w", err)
	}
	return ir.Wrap(coords), nil
}

// termIndex maps the terms already written for a run to their element
// index, so a term can be stored as its operation applied to earlier
// elements instead of as a full tree.
type termIndex struct {
	vars  map[string]int
	nodes map[*ir.NonVariable]int
}

func newTermIndex() *termIndex {
	return &termIndex{vars: make(map[string]int), nodes: make(map[*ir.NonVariable]int)}
}

func (ix *termIndex) add(t ir.Term, idx int) {
	switch tt := t.(type) {
	case ir.Variable:
		if _, ok := ix.vars[tt.Name]; !ok {
			ix.vars[tt.Name] = idx
		}
	case *ir.NonVariable:
		ix.nodes[tt] = idx
	}
}

func (ix *termIndex) lookup(t ir.Term) (int, bool) {
	switch tt := t.(type) {
	case ir.Variable:
		i, ok := ix.vars[tt.Name]
		return i, ok
	case *ir.NonVariable:
		i, ok := ix.nodes[tt]
		return i, ok
	}
	return 0, false
}

// marshalTermRef encodes a term as canonical JSON TEXT:
//
//	{"var":"x"}                             variables
//	{"op":"f","arity":2,"refs":[0,3]}       children are earlier elements
//	{"tree":{...}}                          anything else, as a full term
func marshalTermRef(t ir.Term, ix *termIndex) (string, error) {
	var v ir.Value
	switch {
	case t.IsVariable():
		v = ir.Object{"var": ir.String(t.String())}
	default:
		refs, ok := childRefs(t, ix)
		if ok {
			v = ir.Object{
				"op":    ir.String(t.Symbol().Name),
				"arity": ir.Int(t.Symbol().Arity),
				"refs":  ir.IntArray(refs),
			}
		} else {
			v = ir.Object{"tree": ir.TermValue(t)}
		}
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal term: %w", err)
	}
	return string(data), nil
}

func childRefs(t ir.Term, ix *termIndex) ([]int, bool) {
	refs := make([]int, len(t.Children()))
	for i, c := range t.Children() {
		idx, ok := ix.lookup(c)
		if !ok {
			return nil, false
		}
		refs[i] = idx
	}
	return refs, true
}

// unmarshalTermRef decodes a term, resolving refs against the terms of
// the elements already loaded.
func unmarshalTermRef(data string, loaded []ir.Term) (ir.Term, error) {
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal term: %w", err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("unmarshal term: expected object, got %T", v)
	}
	if tree, ok := obj["tree"]; ok {
		return ir.TermFromValue(tree)
	}
	if _, ok := obj["var"]; ok {
		return ir.TermFromValue(obj)
	}

	name, ok := obj["op"].(ir.String)
	if !ok {
		return nil, fmt.Errorf("unmarshal term: missing op")
	}
	arity, ok := obj["arity"].(ir.Int)
	if !ok {
		return nil, fmt.Errorf("unmarshal term %s: missing arity", name)
	}
	refsVal, _ := obj["refs"].(ir.Array)
	refs, err := refsVal.Ints()
	if err != nil {
		return nil, fmt.Errorf("unmarshal term %s: %w", name, err)
	}
	if len(refs) != int(arity) {
		return nil, fmt.Errorf("unmarshal term %s: arity %d but %d refs", name, arity, len(refs))
	}
	args := make([]ir.Term, len(refs))
	for i, r := range refs {
		if r < 0 || r >= len(loaded) || loaded[r] == nil {
			return nil, fmt.Errorf("unmarshal term %s: ref %d not loaded", name, r)
		}
		args[i] = loaded[r]
	}
	return ir.NewNonVariable(ir.OperationSymbol{Name: string(name), Arity: int(arity)}, args...), nil
}
