package coordinator

import "fmt"

// Policy selects how settlement treats joined children that are still
// pending when their ancestor settles (the fire-and-forget hazard).
type Policy string

const (
	// PolicyStrict raises a dangling-join fault and rolls the physical
	// transaction back: committing with work still in flight would be
	// unsafe. Recommended default.
	PolicyStrict Policy = "strict"

	// PolicyLenientPromote transparently re-homes each outstanding joined
	// child to its own isolated physical transaction, as if it had been
	// declared required_isolated, so it can keep running after the
	// parent's transaction is gone. Exists for callers that forget to
	// await a joined child; new code should treat that as a bug and use
	// strict.
	PolicyLenientPromote Policy = "lenient_promote"
)

// ValidatePolicy checks that p is a known settlement policy.
func ValidatePolicy(p Policy) error {
	switch p {
	case PolicyStrict, PolicyLenientPromote:
		return nil
	case "":
		// Empty is valid - defaults to strict.
		return nil
	default:
		return fmt.Errorf("invalid settlement policy %q: must be %q or %q", p, PolicyStrict, PolicyLenientPromote)
	}
}

// ParsePolicy converts a config string to a Policy, defaulting empty to
// strict.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(s)
	if err := ValidatePolicy(p); err != nil {
		return "", err
	}
	if p == "" {
		p = PolicyStrict
	}
	return p, nil
}
