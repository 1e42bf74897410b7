package ports

import "tradearena/internal/domain"

// PriceFeed produces the synthetic OHLC series a round trades against.
// Implementations are pure apart from randomness consumption: no I/O and no
// failure modes. Callers guarantee positive prices on input.
type PriceFeed interface {
	// GenerateHistory produces count candles ending at "now", each candle
	// opening at the prior candle's close. The first candle opens at startPrice.
	GenerateHistory(count int, startPrice float64) []domain.Candle

	// NextTick derives exactly one new candle from the previous one.
	NextTick(prev domain.Candle) domain.Candle
}
