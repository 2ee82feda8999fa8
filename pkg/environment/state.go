package environment

// State identifies the lifecycle stage an environment has completed. It is
// the explicit discriminant in the persisted document.
type State string

const (
	// StateCreated means the environment record exists but no
	// infrastructure has been provisioned.
	StateCreated State = "created"

	// StateProvisioned means the instance exists and is reachable.
	StateProvisioned State = "provisioned"

	// StateConfigured means system configuration has been applied.
	StateConfigured State = "configured"

	// StateReleased means application artifacts have been deployed.
	StateReleased State = "released"

	// StateRunning means services are started and endpoints discovered.
	StateRunning State = "running"

	// StateDestroyed means infrastructure has been torn down. The record
	// survives until purged.
	StateDestroyed State = "destroyed"
)

// validTransitions is the forward edge set of the lifecycle. Destroyed is
// handled separately because it is reachable from every non-terminal state.
var validTransitions = map[State]State{
	StateCreated:     StateProvisioned,
	StateProvisioned: StateConfigured,
	StateConfigured:  StateReleased,
	StateReleased:    StateRunning,
}

// IsValid reports whether s is one of the known lifecycle states.
func (s State) IsValid() bool {
	switch s {
	case StateCreated, StateProvisioned, StateConfigured, StateReleased, StateRunning, StateDestroyed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s State) IsTerminal() bool {
	return s == StateDestroyed
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition.
func CanTransition(s, next State) bool {
	if next == StateDestroyed {
		return !s.IsTerminal()
	}
	return validTransitions[s] == next
}

// hasInstance reports whether an environment in state s must carry an
// instance address. The address is assigned by provisioning and cleared by
// teardown.
func (s State) hasInstance() bool {
	switch s {
	case StateProvisioned, StateConfigured, StateReleased, StateRunning:
		return true
	}
	return false
}
