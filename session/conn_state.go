package session

import "sync/atomic"

// ConnState represents the stages of an instrument session.
type ConnState uint32

// Session states.
const (
	// DisconnectedState indicates that no TCP connection is established.
	DisconnectedState ConnState = iota
	// ConnectingState indicates that the TCP connection is being established or the
	// identification handshake is in progress. The session is not usable yet.
	ConnectingState
	// ConnectedState indicates that the handshake succeeded and commands may be sent.
	ConnectedState
)

// IsDisconnected returns if the state is disconnected.
func (cs ConnState) IsDisconnected() bool { return cs == DisconnectedState }

// IsConnecting returns if the state is connecting.
func (cs ConnState) IsConnecting() bool { return cs == ConnectingState }

// IsConnected returns if the state is connected.
func (cs ConnState) IsConnected() bool { return cs == ConnectedState }

// String returns string representation of the state.
func (cs ConnState) String() string {
	switch cs {
	case DisconnectedState:
		return "disconnected"
	case ConnectingState:
		return "connecting"
	case ConnectedState:
		return "connected"
	default:
		return "unknown"
	}
}

// AtomicConnState is a ConnState that can be read and transitioned concurrently.
type AtomicConnState struct {
	state atomic.Uint32
}

// Get returns the current state.
func (st *AtomicConnState) Get() ConnState {
	return ConnState(st.state.Load())
}

// Set stores the given state.
func (st *AtomicConnState) Set(state ConnState) {
	st.state.Store(uint32(state))
}

// Swap stores the given state and returns the previous one.
func (st *AtomicConnState) Swap(state ConnState) ConnState {
	return ConnState(st.state.Swap(uint32(state)))
}

// ToConnecting transitions from disconnected to connecting.
func (st *AtomicConnState) ToConnecting() bool {
	return st.state.CompareAndSwap(uint32(DisconnectedState), uint32(ConnectingState))
}

// ToConnected transitions from connecting to connected.
// It fails if the session was closed in the meantime.
func (st *AtomicConnState) ToConnected() bool {
	return st.state.CompareAndSwap(uint32(ConnectingState), uint32(ConnectedState))
}

// ToDisconnected moves to disconnected from any state and reports whether the state changed.
func (st *AtomicConnState) ToDisconnected() bool {
	return st.Swap(DisconnectedState) != DisconnectedState
}

func (st *AtomicConnState) String() string {
	return st.Get().String()
}
