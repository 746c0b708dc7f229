package scan

import "sync/atomic"

// State is the stage of a scan.
type State uint32

// Scan states. A scan moves forward only: Idle, Requested, AwaitingCompletion, then
// one of the terminal states Completed or Failed.
const (
	// IdleState indicates that the scan was created but not requested yet.
	IdleState State = iota
	// RequestedState indicates that the scan command is being sent.
	RequestedState
	// AwaitingCompletionState indicates that the scan command was sent and the
	// estimated scan time is elapsing.
	AwaitingCompletionState
	// CompletedState indicates that the instrument confirmed the scan.
	CompletedState
	// FailedState indicates that the scan could not be requested or confirmed.
	FailedState
)

// IsTerminal returns if the state is Completed or Failed.
func (s State) IsTerminal() bool { return s == CompletedState || s == FailedState }

// String returns string representation of the state.
func (s State) String() string {
	switch s {
	case IdleState:
		return "idle"
	case RequestedState:
		return "requested"
	case AwaitingCompletionState:
		return "awaiting-completion"
	case CompletedState:
		return "completed"
	case FailedState:
		return "failed"
	default:
		return "unknown"
	}
}

// AtomicState is a State with compare-and-swap transitions.
type AtomicState struct {
	state atomic.Uint32
}

// Get returns the current state.
func (st *AtomicState) Get() State {
	return State(st.state.Load())
}

// ToRequested transitions from idle to requested.
func (st *AtomicState) ToRequested() bool {
	return st.state.CompareAndSwap(uint32(IdleState), uint32(RequestedState))
}

// ToAwaitingCompletion transitions from requested to awaiting completion.
func (st *AtomicState) ToAwaitingCompletion() bool {
	return st.state.CompareAndSwap(uint32(RequestedState), uint32(AwaitingCompletionState))
}

// ToCompleted transitions from awaiting completion to completed.
func (st *AtomicState) ToCompleted() bool {
	return st.state.CompareAndSwap(uint32(AwaitingCompletionState), uint32(CompletedState))
}

// ToFailed transitions from any non-terminal state to failed.
func (st *AtomicState) ToFailed() bool {
	for {
		cur := st.state.Load()
		if State(cur).IsTerminal() {
			return false
		}

		if st.state.CompareAndSwap(cur, uint32(FailedState)) {
			return true
		}
	}
}

func (st *AtomicState) String() string {
	return st.Get().String()
}
