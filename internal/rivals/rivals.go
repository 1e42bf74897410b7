package rivals

import (
	"math/rand"
	"sort"
	"time"

	"tradearena/internal/domain"
)

// Rival balance walk tuning. The drift mirrors the price feed's slight upward
// lean so the room does not bleed out on average.
const (
	walkDrift = 0.48
	walkStep  = 10.0
	flipOdds  = 0.3 // chance per tick that a rival enters or exits a trade
)

// DefaultNames are the rivals seeded into a fresh room.
var DefaultNames = []string{"CryptoWhale", "BearTrap_88", "MoonShot"}

// Board simulates the other traders in a round. Their stats are cosmetic:
// a gentle random walk over virtual balance, re-sorted into a live
// leaderboard on every tick. No shared state with the real engine.
type Board struct {
	initialBalance float64
	rng            *rand.Rand
	players        []domain.Player
}

// New seeds a board with one player per name, all at the initial balance.
// A nil rng falls back to a clock-seeded source.
func New(initialBalance float64, names []string, rng *rand.Rand) *Board {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	players := make([]domain.Player, 0, len(names))
	for i, name := range names {
		players = append(players, domain.Player{
			Name:           name,
			Avatar:         name,
			VirtualBalance: initialBalance,
			InTrade:        i%2 == 1,
		})
	}
	return &Board{initialBalance: initialBalance, rng: rng, players: players}
}

// Advance moves every rival one tick: balance random-walks, pnl follows, and
// the in-trade flag occasionally flips. The board is kept sorted by balance
// descending.
func (b *Board) Advance() {
	for i := range b.players {
		p := &b.players[i]
		p.VirtualBalance += (b.rng.Float64() - walkDrift) * walkStep
		p.PnL = p.VirtualBalance - b.initialBalance
		if b.rng.Float64() < flipOdds {
			p.InTrade = !p.InTrade
		}
	}
	sort.SliceStable(b.players, func(i, j int) bool {
		return b.players[i].VirtualBalance > b.players[j].VirtualBalance
	})
}

// Players returns a copy of the current standings.
func (b *Board) Players() []domain.Player {
	out := make([]domain.Player, len(b.players))
	copy(out, b.players)
	return out
}
