package pipeline

// State is the lifecycle stage of a Pipeline.
type State int32

// Pipeline states, in order. A Pipeline never moves backwards.
const (
	// StateIdle: created, not yet run.
	StateIdle State = iota
	// StateExpanding: reading PITs and submitting tasks; tasks already
	// execute while input is read.
	StateExpanding
	// StateRunning: input exhausted, waiting for in-flight tasks.
	StateRunning
	// StateDraining: every task finished; publishing the remaining
	// outcomes and closing sinks.
	StateDraining
	// StateClosed: every outcome written and every sink closed.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExpanding:
		return "expanding"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}
