package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/txscope/internal/coordinator"
	"github.com/roach88/txscope/internal/txn"
)

// Scenario defines a conformance test scenario: a tree of transactional
// boundaries, each with a propagation mode and a body outcome, executed
// against a real coordinator and an in-memory recording adapter. The
// resulting adapter-call trace is what assertions and golden files check.
type Scenario struct {
	// Name uniquely identifies this scenario; golden files use it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Policy selects the coordinator's settlement policy:
	// "strict" (default) or "lenient_promote".
	Policy string `yaml:"policy,omitempty"`

	// Steps are the top-level boundaries, entered sequentially with no
	// ambient scope.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and adapter state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one transactional boundary in the scenario tree.
type Step struct {
	// Mode is the propagation mode ("required", "requires_new", ...).
	Mode string `yaml:"mode"`

	// Body is the boundary body outcome: "succeed" (default) or "fail".
	// Children run before the outcome takes effect.
	Body string `yaml:"body,omitempty"`

	// Error is the failure message used when Body is "fail".
	Error string `yaml:"error,omitempty"`

	// Await controls whether the parent waits for this boundary before
	// continuing. Defaults to true. An unawaited boundary is entered via
	// RunAsync and deliberately left running when the parent settles -
	// the fire-and-forget hazard the settlement policies exist for. To
	// keep traces deterministic, the harness holds unawaited bodies at a
	// gate until every top-level step has settled.
	Await *bool `yaml:"await,omitempty"`

	// Expect is the expected settlement outcome of this boundary:
	// "" for success, otherwise an error classification such as
	// "DANGLING_JOINED_SCOPE", "PROPAGATION_VIOLATION/no_active_transaction",
	// or the literal message of an application error.
	Expect string `yaml:"expect,omitempty"`

	// Children are boundaries entered inside this boundary's body, in
	// order.
	Children []Step `yaml:"children,omitempty"`
}

// Awaited reports whether the parent waits for this step (default true).
func (s Step) Awaited() bool {
	return s.Await == nil || *s.Await
}

// LoadScenario reads and validates a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML. Unknown fields are rejected so typos
// in scenario files fail loudly instead of silently asserting nothing.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks scenario structure: a name, at least one step, known
// modes and policies, known assertion types.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario has no name")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}
	if err := coordinator.ValidatePolicy(coordinator.Policy(s.Policy)); err != nil {
		return fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	for i := range s.Steps {
		if err := validateStep(&s.Steps[i]); err != nil {
			return fmt.Errorf("scenario %q: %w", s.Name, err)
		}
	}
	for _, a := range s.Assertions {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("scenario %q: %w", s.Name, err)
		}
	}
	return nil
}

func validateStep(step *Step) error {
	if err := txn.ValidateMode(txn.PropagationMode(step.Mode)); err != nil {
		return err
	}
	switch step.Body {
	case "", "succeed", "fail":
	default:
		return fmt.Errorf("invalid body %q: must be \"succeed\" or \"fail\"", step.Body)
	}
	for i := range step.Children {
		if err := validateStep(&step.Children[i]); err != nil {
			return err
		}
	}
	return nil
}
