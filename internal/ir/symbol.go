package ir

import "fmt"

// OperationSymbol names an operation together with its arity.
type OperationSymbol struct {
	Name  string
	Arity int
}

// String renders the symbol as "name/arity".
func (s OperationSymbol) String() string {
	return fmt.Sprintf("%s/%d", s.Name, s.Arity)
}
