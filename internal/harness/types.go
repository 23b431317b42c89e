package harness

import (
	"github.com/roach88/pxflux/internal/handlers"
	"github.com/roach88/pxflux/internal/tree"
)

// StepResult records what one step did.
type StepResult struct {
	Origin string `json:"origin"`

	// Rounds is the number of trigger rounds the cascade took to settle.
	Rounds int `json:"rounds"`

	// Fired lists the trigger paths of every round.
	Fired [][]string `json:"fired,omitempty"`

	// Failed lists trigger paths whose handler returned an error.
	Failed []string `json:"failed,omitempty"`

	// Grant is set by verify_pin steps.
	Grant *handlers.Grant `json:"grant,omitempty"`

	Error string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	Steps []StepResult `json:"steps"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Tree is the final tree.
	Tree tree.Node `json:"tree"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
