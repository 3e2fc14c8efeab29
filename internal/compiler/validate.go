package compiler

import (
	"fmt"
	"regexp"

	"github.com/roach88/closer/internal/alg"
	"github.com/roach88/closer/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedType = "E100" // unsupported type for validation

	// Algebra errors (E101-E102)
	ErrInvalidOperationName = "E101" // operation name is not an identifier
	ErrDissimilarTarget     = "E102" // homomorphism target has another similarity type

	// Problem errors (E103-E109)
	ErrGeneratorLength     = "E103" // generator has the wrong number of coordinates
	ErrGeneratorRange      = "E104" // generator coordinate outside the root algebra
	ErrSearchElement       = "E105" // find/find_all element outside the power
	ErrHomomorphismImages  = "E106" // images do not match the generators
	ErrConstraintIndex     = "E107" // constraint index outside the power or malformed pair
	ErrCloneOperation      = "E108" // clone operation arity or universe mismatch
	ErrRuntimeOptionBounds = "E109" // threads, chunk_size or max_size out of range
)

// ValidationError represents a problem validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled problem or algebra.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch x := v.(type) {
	case *Problem:
		return validateProblem(x)
	case *alg.SmallAlgebra:
		return validateAlgebra(x, "algebra")
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

// operationNamePattern keeps operation names printable inside terms.
var operationNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateAlgebra(a *alg.SmallAlgebra, field string) []ValidationError {
	var errs []ValidationError
	for _, op := range a.IntOperations() {
		if !operationNamePattern.MatchString(op.Symbol().Name) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.%s", field, a.Name()),
				Message: fmt.Sprintf("invalid operation name %q, expected an identifier", op.Symbol().Name),
				Code:    ErrInvalidOperationName,
			})
		}
	}
	return errs
}

func validateProblem(p *Problem) []ValidationError {
	var errs []ValidationError
	size := p.Root.Size()

	errs = append(errs, validateAlgebra(p.Root, "algebra")...)

	// E103/E104: generators live in Root^Power
	for i, g := range p.Generators {
		errs = append(errs, validateElement(g, p.Power, size, fmt.Sprintf("generators[%d]", i), ErrGeneratorLength, ErrGeneratorRange)...)
	}

	// E105: search targets live in Root^Power
	if p.Find != nil {
		errs = append(errs, validateElement(*p.Find, p.Power, size, "find", ErrSearchElement, ErrSearchElement)...)
	}
	for i, e := range p.FindAll {
		errs = append(errs, validateElement(e, p.Power, size, fmt.Sprintf("find_all[%d]", i), ErrSearchElement, ErrSearchElement)...)
	}

	if h := p.Homomorphism; h != nil {
		errs = append(errs, validateHomomorphism(p, h)...)
	}

	// E107: constraint indices address coordinates
	if c := p.Constraint; c != nil {
		for i, block := range c.Blocks {
			for _, idx := range block {
				if idx < 0 || idx >= p.Power {
					errs = append(errs, ValidationError{
						Field:   fmt.Sprintf("constraint.blocks[%d]", i),
						Message: fmt.Sprintf("index %d outside %d coordinates", idx, p.Power),
						Code:    ErrConstraintIndex,
					})
				}
			}
		}
		for i, pair := range c.Values {
			field := fmt.Sprintf("constraint.values[%d]", i)
			switch {
			case len(pair) != 2:
				errs = append(errs, ValidationError{Field: field, Message: "expected an [index, value] pair", Code: ErrConstraintIndex})
			case pair[0] < 0 || pair[0] >= p.Power:
				errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("index %d outside %d coordinates", pair[0], p.Power), Code: ErrConstraintIndex})
			case pair[1] < 0 || pair[1] >= size:
				errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("value %d outside universe of size %d", pair[1], size), Code: ErrConstraintIndex})
			}
		}
	}

	// E108: a clone target is a term operation in one variable per generator
	for _, op := range p.Clone {
		if op.Arity() != len(p.Generators) {
			errs = append(errs, ValidationError{
				Field:   "clone." + op.Symbol().Name,
				Message: fmt.Sprintf("arity %d, want %d (one per generator)", op.Arity(), len(p.Generators)),
				Code:    ErrCloneOperation,
			})
		}
	}

	// E109: runtime options
	if p.Threads < 0 {
		errs = append(errs, ValidationError{Field: "threads", Message: fmt.Sprintf("must be non-negative, got %d", p.Threads), Code: ErrRuntimeOptionBounds})
	}
	if p.ChunkSize < 1 {
		errs = append(errs, ValidationError{Field: "chunk_size", Message: fmt.Sprintf("must be positive, got %d", p.ChunkSize), Code: ErrRuntimeOptionBounds})
	}
	if p.MaxSize < 0 {
		errs = append(errs, ValidationError{Field: "max_size", Message: fmt.Sprintf("must be non-negative, got %d", p.MaxSize), Code: ErrRuntimeOptionBounds})
	}

	return errs
}

func validateElement(e ir.Element, power, size int, field, lengthCode, rangeCode string) []ValidationError {
	if e.Len() != power {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("%s has %d coordinates, want %d", e, e.Len(), power),
			Code:    lengthCode,
		}}
	}
	for j, x := range e.Raw() {
		if x < 0 || x >= size {
			return []ValidationError{{
				Field:   field,
				Message: fmt.Sprintf("coordinate %d is %d, outside universe of size %d", j, x, size),
				Code:    rangeCode,
			}}
		}
	}
	return nil
}

func validateHomomorphism(p *Problem, h *Homomorphism) []ValidationError {
	var errs []ValidationError
	root, err := p.Algebra()
	if err == nil && !alg.Similar(root, h.Target) {
		errs = append(errs, ValidationError{
			Field:   "homomorphism.target",
			Message: fmt.Sprintf("%s and %s have different similarity types", p.Root.Name(), h.Target.Name()),
			Code:    ErrDissimilarTarget,
		})
	}

	// E106: one image per generator, equal generators agree
	if len(h.Images) != len(p.Generators) {
		errs = append(errs, ValidationError{
			Field:   "homomorphism.images",
			Message: fmt.Sprintf("%d images for %d generators", len(h.Images), len(p.Generators)),
			Code:    ErrHomomorphismImages,
		})
		return errs
	}
	first := make(map[ir.Key]int, len(p.Generators))
	for i, img := range h.Images {
		if img < 0 || img >= h.Target.Size() {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("homomorphism.images[%d]", i),
				Message: fmt.Sprintf("image %d outside %s", img, h.Target.Name()),
				Code:    ErrHomomorphismImages,
			})
			continue
		}
		key := p.Generators[i].Key()
		if j, dup := first[key]; dup && h.Images[j] != img {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("homomorphism.images[%d]", i),
				Message: fmt.Sprintf("generators %d and %d are equal but map to %d and %d", j, i, h.Images[j], img),
				Code:    ErrHomomorphismImages,
			})
			continue
		}
		first[key] = i
	}
	return errs
}
