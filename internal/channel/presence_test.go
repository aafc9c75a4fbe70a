package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinLeave(t *testing.T) {
	p := NewPresence()

	count := p.Join("presence-room", "conn-1", Member{UserID: "u1", UserInfo: map[string]any{"name": "Ada"}})
	require.Equal(t, 1, count)

	snap := p.Snapshot("presence-room")
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, "Ada", snap.Hash["u1"]["name"])

	m, ok, remaining := p.Leave("presence-room", "conn-1")
	require.True(t, ok)
	assert.Equal(t, "u1", m.UserID)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, 0, p.Count("presence-room"))
}

func TestJoinSameUserMultipleConnections(t *testing.T) {
	p := NewPresence()
	p.Join("presence-room", "conn-1", Member{UserID: "u1"})
	count := p.Join("presence-room", "conn-2", Member{UserID: "u1"})

	require.Equal(t, 2, count)
	// count is connections, not distinct users.
	assert.Equal(t, 2, p.Snapshot("presence-room").Count)

	_, _, remaining := p.Leave("presence-room", "conn-1")
	assert.Equal(t, 1, remaining)
}

func TestLeaveUnknownConnection(t *testing.T) {
	p := NewPresence()
	_, ok, remaining := p.Leave("presence-room", "conn-1")
	assert.False(t, ok)
	assert.Equal(t, 0, remaining)
}
