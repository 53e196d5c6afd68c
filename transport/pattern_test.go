package transport

import (
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePattern(t *testing.T) {
	for _, p := range []Pattern{Pair, Pub, Sub, Push, Pull} {
		got, err := ParsePattern(p.String())
		require.NoError(t, err)
		require.Equal(t, p, got)
	}

	_, err := ParsePattern("req")
	require.Error(t, err)
	require.Equal(t, "pattern(42)", Pattern(42).String())
}

func TestPattern_Directions(t *testing.T) {
	tests := []struct {
		pattern  Pattern
		send     bool
		recv     bool
		peer     Pattern
		notPeers []Pattern
	}{
		{pattern: Pair, send: true, recv: true, peer: Pair, notPeers: []Pattern{Pub, Sub, Push, Pull}},
		{pattern: Pub, send: true, peer: Sub, notPeers: []Pattern{Pair, Pub, Push, Pull}},
		{pattern: Sub, recv: true, peer: Pub, notPeers: []Pattern{Pair, Sub, Push, Pull}},
		{pattern: Push, send: true, peer: Pull, notPeers: []Pattern{Pair, Pub, Sub, Push}},
		{pattern: Pull, recv: true, peer: Push, notPeers: []Pattern{Pair, Pub, Sub, Pull}},
	}

	for _, tt := range tests {
		t.Run(tt.pattern.String(), func(t *testing.T) {
			require.Equal(t, tt.send, tt.pattern.CanSend())
			require.Equal(t, tt.recv, tt.pattern.CanRecv())
			require.True(t, tt.pattern.Peer(tt.peer))
			for _, q := range tt.notPeers {
				require.False(t, tt.pattern.Peer(q), q.String())
			}
		})
	}
}

func TestIsWouldBlock(t *testing.T) {
	require.True(t, IsWouldBlock(ErrWouldBlock))
	require.True(t, IsWouldBlock(fmt.Errorf("recv: %w", ErrWouldBlock)))
	require.True(t, IsWouldBlock(syscall.EAGAIN))
	require.False(t, IsWouldBlock(ErrTerminated))
	require.False(t, IsWouldBlock(nil))
}
