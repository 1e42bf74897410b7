package tournament

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradearena/internal/ports"
)

func TestPrizePool(t *testing.T) {
	tests := []struct {
		buyIn      float64
		maxPlayers int
		want       float64
	}{
		{10, 6, 57},
		{100, 2, 190},
		{1, 10, 9.5},
		{50, 20, 950},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, PrizePool(tt.buyIn, tt.maxPlayers, DefaultPlatformFee), 1e-9)
	}
}

func TestSeedListing(t *testing.T) {
	l := NewLobby(DefaultPlatformFee)
	l.Seed()
	rooms := l.Rooms()
	require.Len(t, rooms, 4)
	assert.Equal(t, "Fast Game #322", rooms[0].Title)
	assert.InDelta(t, 57.0, rooms[0].PrizePool, 1e-9)
}

func TestJoinFillsRoom(t *testing.T) {
	l := NewLobby(DefaultPlatformFee)
	l.Add(Room{ID: "r", Title: "Heads Up", BuyIn: 5, CurrentPlayers: 0, MaxPlayers: 2, Status: StatusWaiting})

	r, err := l.Join("r")
	require.NoError(t, err)
	assert.Equal(t, 1, r.CurrentPlayers)
	assert.Equal(t, StatusWaiting, r.Status)

	r, err = l.Join("r")
	require.NoError(t, err)
	assert.Equal(t, 2, r.CurrentPlayers)
	assert.Equal(t, StatusInProgress, r.Status)

	_, err = l.Join("r")
	assert.ErrorIs(t, err, ports.ErrRoomInProgress)
}

func TestJoinUnknownRoom(t *testing.T) {
	l := NewLobby(DefaultPlatformFee)
	_, err := l.Join("nope")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestLeave(t *testing.T) {
	l := NewLobby(DefaultPlatformFee)
	l.Add(Room{ID: "r", BuyIn: 5, CurrentPlayers: 1, MaxPlayers: 4, Status: StatusWaiting})

	require.NoError(t, l.Leave("r"))
	assert.Equal(t, 0, l.Rooms()[0].CurrentPlayers)

	// Leaving an empty room does not underflow.
	require.NoError(t, l.Leave("r"))
	assert.Equal(t, 0, l.Rooms()[0].CurrentPlayers)
}
