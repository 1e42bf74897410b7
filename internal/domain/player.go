package domain

// Player is one leaderboard row, covering both the real trader and the
// simulated rivals in the room.
type Player struct {
	Name           string  `json:"name"`
	Avatar         string  `json:"avatar"` // avatar seed for the UI
	VirtualBalance float64 `json:"virtualBalance"`
	PnL            float64 `json:"pnl"`
	InTrade        bool    `json:"inTrade"`
	You            bool    `json:"you"`
}
