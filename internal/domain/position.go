package domain

// Position represents the single leveraged position a trader may hold.
type Position struct {
	Type             PositionType `json:"type"`
	EntryPrice       float64      `json:"entryPrice"`       // margin-weighted average across all additions
	Margin           float64      `json:"margin"`           // committed USD, excluding the leverage multiplier
	LiquidationPrice float64      `json:"liquidationPrice"` // derived, recomputed on every mutation
}

// Size returns the effective position size for the given leverage.
func (p Position) Size(leverage int) float64 {
	return p.Margin * float64(leverage)
}

// UnrealizedPnL returns the floating PnL of the position at the given price.
func (p Position) UnrealizedPnL(price float64, leverage int) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return ((price - p.EntryPrice) / p.EntryPrice) * p.Size(leverage) * p.Type.Direction()
}
