package seats

import "fmt"

// InvalidActionError reports an action outside the legal set for the current
// phase. The state is left unmutated. It always indicates a caller bug and is
// never retried internally.
type InvalidActionError struct {
	Action   Action
	Phase    Phase
	Terminal bool
}

func (e *InvalidActionError) Error() string {
	if e.Terminal {
		return fmt.Sprintf("seats: action %d applied to a terminal state", e.Action)
	}
	return fmt.Sprintf("seats: action %d is not legal in phase %s", e.Action, e.Phase)
}

// ComputationError reports a degenerate numeric condition during demand
// allocation, such as zero total market power. It is fatal to the current
// simulation run; no default is substituted.
type ComputationError struct {
	Op     string
	Reason string
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("seats: %s: %s", e.Op, e.Reason)
}

// MalformedStateError reports serialized input that does not match the
// expected field grammar. No partial state is returned.
type MalformedStateError struct {
	Reason string
}

func (e *MalformedStateError) Error() string {
	return fmt.Sprintf("seats: malformed state: %s", e.Reason)
}
