package domain

// Candle represents a single OHLC bar of the synthetic price series.
// Time is in unix seconds; consecutive candles are spaced exactly BarStep apart.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// BarStep is the fixed candle interval in seconds.
const BarStep int64 = 60

// IsValid reports whether the wick bounds enclose the candle body.
func (c Candle) IsValid() bool {
	lo, hi := c.Open, c.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	return c.Low <= lo && c.High >= hi
}
