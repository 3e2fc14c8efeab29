package harness

import "github.com/roach88/closer/internal/engine"

// RunSummary describes one closure run of a scenario.
type RunSummary struct {
	Strategy     string `json:"strategy"`
	Size         int    `json:"size"`
	Passes       int    `json:"passes"`
	StopReason   string `json:"stop_reason"`
	Completed    bool   `json:"completed"`
	Applications int64  `json:"applications"`
	Degraded     bool   `json:"degraded,omitempty"`
}

func summarize(label string, c *engine.Closer) RunSummary {
	return RunSummary{
		Strategy:     label,
		Size:         c.Size(),
		Passes:       c.Pass(),
		StopReason:   string(c.StopReason()),
		Completed:    c.Completed(),
		Applications: c.Applications(),
		Degraded:     c.Degraded(),
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success: every run agreed with the
	// reference and every assertion held.
	Pass bool `json:"pass"`

	// Runs lists the reference run first, then one entry per strategy.
	Runs []RunSummary `json:"runs"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// reference is the serial run assertions and snapshots are taken from.
	reference *engine.Closer
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Runs:   []RunSummary{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Reference returns the serial reference run.
func (r *Result) Reference() *engine.Closer {
	return r.reference
}
