package tournament

import (
	"sync"

	"tradearena/internal/ports"
)

// DefaultPlatformFee is the cut taken from the pot before payout.
const DefaultPlatformFee = 0.05

// RoomStatus represents the lifecycle of a tournament room.
type RoomStatus string

const (
	StatusWaiting    RoomStatus = "WAITING"
	StatusInProgress RoomStatus = "IN_PROGRESS"
	StatusCompleted  RoomStatus = "COMPLETED"
)

// Room is one joinable tournament listing.
type Room struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	BuyIn          float64    `json:"buyIn"`
	CurrentPlayers int        `json:"currentPlayers"`
	MaxPlayers     int        `json:"maxPlayers"`
	Status         RoomStatus `json:"status"`
	PrizePool      float64    `json:"prizePool"`
}

// PrizePool returns the payout for a full room after the platform fee.
func PrizePool(buyIn float64, maxPlayers int, fee float64) float64 {
	return buyIn * float64(maxPlayers) * (1 - fee)
}

// Lobby holds the joinable rooms. It is safe for concurrent use by the HTTP
// layer.
type Lobby struct {
	mu    sync.Mutex
	fee   float64
	rooms map[string]*Room
	order []string
}

// NewLobby creates an empty lobby with the given platform fee; a
// non-positive fee falls back to the default.
func NewLobby(fee float64) *Lobby {
	if fee <= 0 || fee >= 1 {
		fee = DefaultPlatformFee
	}
	return &Lobby{fee: fee, rooms: make(map[string]*Room)}
}

// Seed registers the default room listing a fresh deployment starts with.
func (l *Lobby) Seed() {
	l.Add(Room{ID: "1", Title: "Fast Game #322", BuyIn: 10, CurrentPlayers: 4, MaxPlayers: 6, Status: StatusWaiting})
	l.Add(Room{ID: "2", Title: "Whale Battle", BuyIn: 100, CurrentPlayers: 2, MaxPlayers: 2, Status: StatusInProgress})
	l.Add(Room{ID: "3", Title: "Micro Grind", BuyIn: 1, CurrentPlayers: 1, MaxPlayers: 10, Status: StatusWaiting})
	l.Add(Room{ID: "4", Title: "Sunday Major", BuyIn: 50, CurrentPlayers: 12, MaxPlayers: 20, Status: StatusWaiting})
}

// Add registers a room, computing its prize pool from the buy-in and capacity.
func (l *Lobby) Add(r Room) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r.PrizePool = PrizePool(r.BuyIn, r.MaxPlayers, l.fee)
	l.rooms[r.ID] = &r
	l.order = append(l.order, r.ID)
}

// Rooms returns the current listing in registration order.
func (l *Lobby) Rooms() []Room {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Room, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.rooms[id])
	}
	return out
}

// Join adds a player to a waiting room. A room that fills up moves to
// IN_PROGRESS.
func (l *Lobby) Join(id string) (*Room, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rooms[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	if r.Status != StatusWaiting {
		return nil, ports.ErrRoomInProgress
	}
	if r.CurrentPlayers >= r.MaxPlayers {
		return nil, ports.ErrRoomFull
	}
	r.CurrentPlayers++
	if r.CurrentPlayers == r.MaxPlayers {
		r.Status = StatusInProgress
	}
	out := *r
	return &out, nil
}

// Leave removes a player from a waiting room.
func (l *Lobby) Leave(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rooms[id]
	if !ok {
		return ports.ErrNotFound
	}
	if r.Status != StatusWaiting {
		return ports.ErrRoomInProgress
	}
	if r.CurrentPlayers > 0 {
		r.CurrentPlayers--
	}
	return nil
}
