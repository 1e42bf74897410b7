package domain

// PositionType represents the side of an open position (LONG or SHORT).
// A flat trader has no position at all rather than a third side value.
type PositionType string

const (
	Long  PositionType = "LONG"
	Short PositionType = "SHORT"
)

// Opposite returns the other side.
func (t PositionType) Opposite() PositionType {
	if t == Long {
		return Short
	}
	return Long
}

// Direction returns +1 for LONG and -1 for SHORT, the sign applied to PnL.
func (t PositionType) Direction() float64 {
	if t == Long {
		return 1
	}
	return -1
}

// RoundStatus represents the lifecycle state of a trading round.
type RoundStatus string

const (
	RoundActive     RoundStatus = "active"
	RoundEnded      RoundStatus = "ended"      // timer expired, state frozen
	RoundLiquidated RoundStatus = "liquidated" // terminal, total account loss
)

// Over reports whether the round no longer accepts trade operations.
func (s RoundStatus) Over() bool {
	return s != RoundActive
}

// TradeResult names the branch a trade operation took. Rejections carry no
// further detail: a rejected operation mutates nothing.
type TradeResult string

const (
	TradeOpened  TradeResult = "opened"
	TradeAdded   TradeResult = "added"
	TradeReduced TradeResult = "reduced"
	TradeClosed  TradeResult = "closed"
	TradeFlipped TradeResult = "flipped"
	// TradeClosedExcessDropped is the permissive fallback on a flip whose
	// excess margin the post-close wallet cannot cover: the position closes
	// fully and the excess is dropped without opening the opposite side.
	TradeClosedExcessDropped TradeResult = "closed_excess_dropped"

	TradeRejectedInvalidMargin     TradeResult = "rejected_invalid_margin"
	TradeRejectedInsufficientFunds TradeResult = "rejected_insufficient_funds"
	TradeRejectedNoPosition        TradeResult = "rejected_no_position"
	TradeRejectedRoundOver         TradeResult = "rejected_round_over"
)

// Rejected reports whether the operation was refused without any mutation.
func (r TradeResult) Rejected() bool {
	switch r {
	case TradeRejectedInvalidMargin, TradeRejectedInsufficientFunds,
		TradeRejectedNoPosition, TradeRejectedRoundOver:
		return true
	}
	return false
}
