package domain

// Wallet holds a trader's virtual funds for one round.
// Balance is the free, uncommitted margin and must never go negative.
type Wallet struct {
	Balance     float64 `json:"balance"`
	RealizedPnL float64 `json:"realizedPnL"` // cumulative, signed
}
