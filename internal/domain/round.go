package domain

import "time"

// RoundResult is the archived outcome of a finished round.
// Individual trades are not persisted; only the final standing survives the
// session.
type RoundResult struct {
	ID           int64     `json:"id"`
	RoomID       string    `json:"roomId"`
	StartedAt    time.Time `json:"startedAt"`
	EndedAt      time.Time `json:"endedAt"`
	FinalBalance float64   `json:"finalBalance"`
	RealizedPnL  float64   `json:"realizedPnL"`
	FinalPnL     float64   `json:"finalPnL"` // realized + unrealized at round end, used for ranking
	Liquidated   bool      `json:"liquidated"`
	Trades       int       `json:"trades"` // accepted trade operations during the round
}
