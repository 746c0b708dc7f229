package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicConnState(t *testing.T) {
	require := require.New(t)

	var st AtomicConnState
	require.True(st.Get().IsDisconnected())
	require.Equal("disconnected", st.String())

	require.False(st.ToConnected())
	require.True(st.ToConnecting())
	require.True(st.Get().IsConnecting())
	require.False(st.ToConnecting())

	require.True(st.ToConnected())
	require.True(st.Get().IsConnected())
	require.Equal("connected", st.String())

	require.True(st.ToDisconnected())
	require.False(st.ToDisconnected())
	require.True(st.Get().IsDisconnected())

	// a session closed during its handshake cannot become connected
	require.True(st.ToConnecting())
	require.True(st.ToDisconnected())
	require.False(st.ToConnected())

	require.Equal("unknown", ConnState(42).String())
}
