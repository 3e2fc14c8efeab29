package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/closer/internal/engine"
)

// Scenario defines a closure conformance scenario.
// A scenario closes one problem under several strategies, checks that they
// agree, and asserts on the result of the serial reference run.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Problem is the path to a CUE file with an "algebra" and a "problem".
	// Relative paths are resolved against the scenario file location.
	Problem string `yaml:"problem"`

	// Strategies lists the strategies to run against the serial reference.
	// Defaults to parallel, equal_workload and auto.
	Strategies []string `yaml:"strategies,omitempty"`

	// Threads and ChunkSize override the problem's settings for every
	// non-serial run when positive.
	Threads   int `yaml:"threads,omitempty"`
	ChunkSize int `yaml:"chunk_size,omitempty"`

	// Resume also closes the problem one pass at a time, saving and
	// reloading a checkpoint between passes.
	Resume bool `yaml:"resume,omitempty"`

	// Assertions validate the serial reference run.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates the reference run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "size": closure has exactly Count elements
	// - "passes": closure took exactly Count passes
	// - "stop_reason": run stopped for Reason
	// - "contains": every element of Elements is in the closure
	// - "excludes": no element of Elements is in the closure
	// - "term": Element is generated by the term Term
	// - "failing_equation": the homomorphism fails, optionally on Equation
	// - "clone_terms": every operation in Names was found in the clone
	Type string `yaml:"type"`

	Count    int      `yaml:"count,omitempty"`
	Reason   string   `yaml:"reason,omitempty"`
	Elements [][]int  `yaml:"elements,omitempty"`
	Element  []int    `yaml:"element,omitempty"`
	Term     string   `yaml:"term,omitempty"`
	Equation string   `yaml:"equation,omitempty"`
	Names    []string `yaml:"names,omitempty"`
}

// Assertion type constants.
const (
	AssertSize            = "size"
	AssertPasses          = "passes"
	AssertStopReason      = "stop_reason"
	AssertContains        = "contains"
	AssertExcludes        = "excludes"
	AssertTerm            = "term"
	AssertFailingEquation = "failing_equation"
	AssertCloneTerms      = "clone_terms"
)

var stopReasons = map[string]bool{
	string(engine.StopFixedPoint):   true,
	string(engine.StopUniverse):     true,
	string(engine.StopElementFound): true,
	string(engine.StopAllFound):     true,
	string(engine.StopCloneFound):   true,
	string(engine.StopConstraint):   true,
	string(engine.StopHomomorphism): true,
	string(engine.StopSizeLimit):    true,
	string(engine.StopPaused):       true,
}

// LoadScenario reads and parses a scenario YAML file, resolving the
// problem path relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the problem path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the problem path BEFORE validation
	if scenario.Problem != "" && !filepath.IsAbs(scenario.Problem) && basePath != "" {
		scenario.Problem = filepath.Join(basePath, scenario.Problem)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// strategies returns the parsed strategies to compare with the reference.
func (s *Scenario) strategies() []engine.Strategy {
	names := s.Strategies
	if len(names) == 0 {
		names = []string{"parallel", "equal_workload", "auto"}
	}
	out := make([]engine.Strategy, 0, len(names))
	for _, name := range names {
		if st, ok := engine.ParseStrategy(name); ok {
			out = append(out, st)
		}
	}
	return out
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Problem == "" {
		return fmt.Errorf("problem is required")
	}
	if _, err := os.Stat(s.Problem); os.IsNotExist(err) {
		return fmt.Errorf("problem file not found: %s", s.Problem)
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, name := range s.Strategies {
		if _, ok := engine.ParseStrategy(name); !ok {
			return fmt.Errorf("strategies[%d]: unknown strategy %q", i, name)
		}
	}
	if s.Threads < 0 {
		return fmt.Errorf("threads must be non-negative")
	}
	if s.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be non-negative")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSize, AssertPasses:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertStopReason:
		if !stopReasons[a.Reason] {
			return fmt.Errorf("assertions[%d]: unknown stop reason %q", index, a.Reason)
		}
	case AssertContains, AssertExcludes:
		if len(a.Elements) == 0 {
			return fmt.Errorf("assertions[%d]: elements list is required for %s", index, a.Type)
		}
	case AssertTerm:
		if len(a.Element) == 0 {
			return fmt.Errorf("assertions[%d]: element is required for term", index)
		}
		if a.Term == "" {
			return fmt.Errorf("assertions[%d]: term is required for term", index)
		}
	case AssertFailingEquation:
	case AssertCloneTerms:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names list is required for clone_terms", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
