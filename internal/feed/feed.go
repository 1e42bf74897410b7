package feed

import (
	"math"
	"math/rand"
	"time"

	"tradearena/internal/domain"
)

// Volatility tuning of the synthetic walk. Historical bars wander a little
// more than live ticks, and wicks extend a fraction of the price beyond the
// candle body.
const (
	historyVolatility = 0.002  // 0.2% per historical bar
	tickVolatility    = 0.0015 // 0.15% per live tick
	historyWickRange  = 0.001  // up to 0.1% beyond the body
	tickWickRange     = 0.0005 // up to 0.05% beyond the body
	maxVolume         = 100

	// defaultDrift is subtracted from the uniform sample on live ticks;
	// anything below 0.5 leans the walk upward. A tunable constant, not a
	// hidden edge.
	defaultDrift = 0.48
)

// Config tunes the generator. Zero values fall back to the defaults above.
type Config struct {
	Drift float64    // directional bias of live ticks, (0,1); 0.5 is neutral
	Rand  *rand.Rand // injectable source for deterministic tests
	Now   func() time.Time
}

// Generator produces the synthetic random-walk OHLC series the rounds trade
// against. It implements ports.PriceFeed: pure apart from randomness, no I/O,
// no failure modes.
type Generator struct {
	drift float64
	rng   *rand.Rand
	now   func() time.Time
}

// New creates a generator. With a nil Rand the walk is seeded from the clock,
// so every round plays a numerically distinct but structurally identical
// series.
func New(cfg Config) *Generator {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Drift <= 0 || cfg.Drift >= 1 {
		cfg.Drift = defaultDrift
	}
	return &Generator{drift: cfg.Drift, rng: cfg.Rand, now: cfg.Now}
}

// GenerateHistory produces count candles ending at "now", each candle opening
// at the prior candle's close. The first candle opens at startPrice.
func (g *Generator) GenerateHistory(count int, startPrice float64) []domain.Candle {
	candles := make([]domain.Candle, 0, count)
	now := g.now().Unix()
	price := startPrice
	for i := 0; i < count; i++ {
		open := price
		close := open + open*historyVolatility*(g.rng.Float64()-0.5)
		candles = append(candles, domain.Candle{
			Time:   now - int64(count-i)*domain.BarStep,
			Open:   open,
			High:   math.Max(open, close) + g.rng.Float64()*open*historyWickRange,
			Low:    math.Min(open, close) - g.rng.Float64()*open*historyWickRange,
			Close:  close,
			Volume: g.rng.Float64() * maxVolume,
		})
		price = close
	}
	return candles
}

// NextTick derives exactly one new candle from the previous close. Live ticks
// are tighter than the historical bars and carry the configured drift.
// prev.Close > 0 is a caller-guaranteed precondition.
func (g *Generator) NextTick(prev domain.Candle) domain.Candle {
	open := prev.Close
	close := open + open*tickVolatility*(g.rng.Float64()-g.drift)
	return domain.Candle{
		Time:   prev.Time + domain.BarStep,
		Open:   open,
		High:   math.Max(open, close) + g.rng.Float64()*open*tickWickRange,
		Low:    math.Min(open, close) - g.rng.Float64()*open*tickWickRange,
		Close:  close,
		Volume: g.rng.Float64() * maxVolume,
	}
}
