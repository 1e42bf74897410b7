package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradearena/internal/domain"
)

func testConfig() Config {
	return Config{
		InitialBalance:        10000,
		Leverage:              20,
		MaintenanceMarginRate: 0.05,
	}
}

func newTestEngine(t *testing.T, startPrice float64) *Engine {
	t.Helper()
	e, err := New(testConfig(), startPrice)
	require.NoError(t, err)
	return e
}

// tickTo advances the engine to a new mark price via a synthetic candle.
func tickTo(e *Engine, price float64) bool {
	return e.OnTick(domain.Candle{Time: 0, Open: price, High: price, Low: price, Close: price})
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		startPrice float64
	}{
		{"zero balance", func(c *Config) { c.InitialBalance = 0 }, 100},
		{"negative leverage", func(c *Config) { c.Leverage = -1 }, 100},
		{"zero maintenance rate", func(c *Config) { c.MaintenanceMarginRate = 0 }, 100},
		{"maintenance rate of one", func(c *Config) { c.MaintenanceMarginRate = 1 }, 100},
		{"zero start price", func(c *Config) {}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New(cfg, tt.startPrice)
			assert.Error(t, err)
		})
	}
}

func TestOpenPosition(t *testing.T) {
	e := newTestEngine(t, 100)

	res := e.Trade(domain.Long, 1000)
	assert.Equal(t, domain.TradeOpened, res)

	st := e.Snapshot()
	require.NotNil(t, st.Position)
	assert.Equal(t, domain.Long, st.Position.Type)
	assert.Equal(t, 100.0, st.Position.EntryPrice)
	assert.Equal(t, 1000.0, st.Position.Margin)
	assert.Equal(t, 9000.0, st.Wallet.Balance)
	// size=20000, maintenance=1000: liq = (1000-9000-1000+20000)*100/20000
	assert.InDelta(t, 55.0, st.Position.LiquidationPrice, 1e-9)
}

func TestOpenRejectsBadMargin(t *testing.T) {
	e := newTestEngine(t, 100)

	assert.Equal(t, domain.TradeRejectedInvalidMargin, e.Trade(domain.Long, 0))
	assert.Equal(t, domain.TradeRejectedInvalidMargin, e.Trade(domain.Long, -500))
	assert.Equal(t, domain.TradeRejectedInvalidMargin, e.Trade(domain.Long, math.NaN()))
	assert.Equal(t, domain.TradeRejectedInvalidMargin, e.Trade(domain.Long, math.Inf(1)))
	assert.Equal(t, domain.TradeRejectedInvalidMargin, e.Trade(domain.PositionType("SIDEWAYS"), 100))
	assert.Equal(t, domain.TradeRejectedInsufficientFunds, e.Trade(domain.Long, 10001))

	// Nothing moved.
	st := e.Snapshot()
	assert.Nil(t, st.Position)
	assert.Equal(t, 10000.0, st.Wallet.Balance)
	assert.Equal(t, 0.0, st.Wallet.RealizedPnL)
}

func TestEntryPriceBlending(t *testing.T) {
	e := newTestEngine(t, 100)

	require.Equal(t, domain.TradeOpened, e.Trade(domain.Long, 1000))
	tickTo(e, 200)
	require.Equal(t, domain.TradeAdded, e.Trade(domain.Long, 1000))

	st := e.Snapshot()
	require.NotNil(t, st.Position)
	// Margin-weighted average, not (100+200)/2 applied naively to price moves.
	assert.InDelta(t, 150.0, st.Position.EntryPrice, 1e-9)
	assert.Equal(t, 2000.0, st.Position.Margin)
	assert.Equal(t, 8000.0, st.Wallet.Balance)
}

func TestPyramidingRejectsInsufficientFunds(t *testing.T) {
	e := newTestEngine(t, 100)
	require.Equal(t, domain.TradeOpened, e.Trade(domain.Long, 6000))

	res := e.Trade(domain.Long, 5000) // only 4000 free
	assert.Equal(t, domain.TradeRejectedInsufficientFunds, res)

	st := e.Snapshot()
	assert.Equal(t, 6000.0, st.Position.Margin)
	assert.Equal(t, 100.0, st.Position.EntryPrice)
	assert.Equal(t, 4000.0, st.Wallet.Balance)
}

func TestPartialClose(t *testing.T) {
	e := newTestEngine(t, 100)
	require.Equal(t, domain.TradeOpened, e.Trade(domain.Long, 1000))
	tickTo(e, 110)

	res := e.Trade(domain.Short, 500)
	assert.Equal(t, domain.TradeReduced, res)

	st := e.Snapshot()
	require.NotNil(t, st.Position)
	// pnl = ((110-100)/100)*20000 = 2000; realized = pnl*0.5 = 1000
	assert.InDelta(t, 1000.0, st.Wallet.RealizedPnL, 1e-9)
	// wallet credited marginDelta + realized = 500 + 1000
	assert.InDelta(t, 10500.0, st.Wallet.Balance, 1e-9)
	assert.Equal(t, 500.0, st.Position.Margin)
	// entry price is untouched by a partial close
	assert.Equal(t, 100.0, st.Position.EntryPrice)
	assert.Equal(t, domain.Long, st.Position.Type)
}

func TestFullCloseViaOppositeTrade(t *testing.T) {
	e := newTestEngine(t, 100)
	require.Equal(t, domain.TradeOpened, e.Trade(domain.Long, 1000))
	tickTo(e, 110)

	res := e.Trade(domain.Short, 1000) // ratio exactly 1, no excess
	assert.Equal(t, domain.TradeClosed, res)

	st := e.Snapshot()
	assert.Nil(t, st.Position)
	assert.InDelta(t, 2000.0, st.Wallet.RealizedPnL, 1e-9)
	assert.InDelta(t, 12000.0, st.Wallet.Balance, 1e-9)
}

func TestFullCloseThenFlip(t *testing.T) {
	e := newTestEngine(t, 100)
	require.Equal(t, domain.TradeOpened, e.Trade(domain.Long, 1000))

	// Price unchanged: realized pnl is zero, excess of 500 opens a SHORT.
	res := e.Trade(domain.Short, 1500)
	assert.Equal(t, domain.TradeFlipped, res)

	st := e.Snapshot()
	require.NotNil(t, st.Position)
	assert.Equal(t, domain.Short, st.Position.Type)
	assert.Equal(t, 500.0, st.Position.Margin)
	assert.Equal(t, 100.0, st.Position.EntryPrice)
	assert.Equal(t, 0.0, st.Wallet.RealizedPnL)
	// 9000 + 1000 returned - 500 re-committed
	assert.InDelta(t, 9500.0, st.Wallet.Balance, 1e-9)
}

func TestFlipExcessDroppedWhenUnderfunded(t *testing.T) {
	e := newTestEngine(t, 100)
	// Commit the entire wallet so the post-close balance cannot cover a large
	// opposite position.
	require.Equal(t, domain.TradeOpened, e.Trade(domain.Long, 10000))

	res := e.Trade(domain.Short, 25000) // excess 15000 > 10000 after close
	assert.Equal(t, domain.TradeClosedExcessDropped, res)

	st := e.Snapshot()
	assert.Nil(t, st.Position)
	assert.InDelta(t, 10000.0, st.Wallet.Balance, 1e-9)
	assert.Equal(t, 0.0, st.Wallet.RealizedPnL)
}

func TestClose(t *testing.T) {
	e := newTestEngine(t, 100)
	require.Equal(t, domain.TradeOpened, e.Trade(domain.Long, 1000))
	tickTo(e, 110)

	assert.Equal(t, domain.TradeClosed, e.Close())

	st := e.Snapshot()
	assert.Nil(t, st.Position)
	assert.InDelta(t, 2000.0, st.Wallet.RealizedPnL, 1e-9)
	assert.InDelta(t, 12000.0, st.Wallet.Balance, 1e-9)

	// Closing again is a no-op.
	assert.Equal(t, domain.TradeRejectedNoPosition, e.Close())
}

func TestShortPnLSign(t *testing.T) {
	e := newTestEngine(t, 100)
	require.Equal(t, domain.TradeOpened, e.Trade(domain.Short, 1000))
	tickTo(e, 90)

	st := e.Snapshot()
	// ((90-100)/100)*20000*-1 = +2000 for a short
	assert.InDelta(t, 2000.0, st.UnrealizedPnL, 1e-9)

	assert.Equal(t, domain.TradeClosed, e.Close())
	assert.InDelta(t, 2000.0, e.Snapshot().Wallet.RealizedPnL, 1e-9)
}

func TestLiquidationTriggerLong(t *testing.T) {
	e := newTestEngine(t, 100)
	require.Equal(t, domain.TradeOpened, e.Trade(domain.Long, 1000))
	liq := e.Snapshot().Position.LiquidationPrice
	require.InDelta(t, 55.0, liq, 1e-9)

	// Just above the liquidation price: no trigger.
	assert.False(t, tickTo(e, liq+0.01))
	assert.Equal(t, domain.RoundActive, e.Status())

	// At the liquidation price: trigger.
	assert.True(t, tickTo(e, liq))

	st := e.Snapshot()
	assert.Equal(t, domain.RoundLiquidated, st.Status)
	assert.Nil(t, st.Position)
	assert.Equal(t, 0.0, st.Wallet.Balance)
	assert.Equal(t, -10000.0, st.Wallet.RealizedPnL)
}

func TestLiquidationTriggerShort(t *testing.T) {
	e := newTestEngine(t, 100)
	require.Equal(t, domain.TradeOpened, e.Trade(domain.Short, 1000))
	liq := e.Snapshot().Position.LiquidationPrice
	// size=20000, maintenance=1000: liq = 100*(1-(1000-9000-1000)/20000) = 145
	require.InDelta(t, 145.0, liq, 1e-9)

	// A short never liquidates on the way down.
	assert.False(t, tickTo(e, 50))
	assert.Equal(t, domain.RoundActive, e.Status())

	assert.False(t, tickTo(e, liq-0.01))
	assert.True(t, tickTo(e, liq))
	assert.Equal(t, domain.RoundLiquidated, e.Status())
}

func TestLiquidatedIsTerminal(t *testing.T) {
	e := newTestEngine(t, 100)
	require.Equal(t, domain.TradeOpened, e.Trade(domain.Long, 1000))
	require.True(t, tickTo(e, 10))

	before := e.Snapshot()
	assert.Equal(t, domain.TradeRejectedRoundOver, e.Trade(domain.Long, 100))
	assert.Equal(t, domain.TradeRejectedRoundOver, e.Trade(domain.Short, 100))
	assert.Equal(t, domain.TradeRejectedRoundOver, e.Close())

	// Ticks keep updating the mark price but nothing else.
	assert.False(t, tickTo(e, 20))
	after := e.Snapshot()
	assert.Equal(t, before.Wallet, after.Wallet)
	assert.Nil(t, after.Position)
	assert.Equal(t, 20.0, after.LastPrice)
	assert.Equal(t, domain.RoundLiquidated, after.Status)
}

func TestEndRoundFreezesState(t *testing.T) {
	e := newTestEngine(t, 100)
	require.Equal(t, domain.TradeOpened, e.Trade(domain.Long, 1000))
	tickTo(e, 110)

	final := e.EndRound()
	assert.InDelta(t, 2000.0, final, 1e-9) // unrealized counts toward ranking
	assert.Equal(t, domain.RoundEnded, e.Status())

	assert.Equal(t, domain.TradeRejectedRoundOver, e.Trade(domain.Long, 100))
	assert.Equal(t, domain.TradeRejectedRoundOver, e.Close())
}

func TestEndRoundAfterLiquidation(t *testing.T) {
	e := newTestEngine(t, 100)
	require.Equal(t, domain.TradeOpened, e.Trade(domain.Long, 1000))
	require.True(t, tickTo(e, 10))

	final := e.EndRound()
	assert.Equal(t, -10000.0, final)
	assert.Equal(t, domain.RoundLiquidated, e.Status()) // liquidation is not overwritten
}

func TestSnapshotIdempotent(t *testing.T) {
	e := newTestEngine(t, 100)
	require.Equal(t, domain.TradeOpened, e.Trade(domain.Long, 1000))
	tickTo(e, 105)

	first := e.Snapshot()
	second := e.Snapshot()
	assert.Equal(t, first, second)

	// The snapshot position is a copy; mutating it must not touch the engine.
	first.Position.Margin = 1
	assert.Equal(t, 1000.0, e.Snapshot().Position.Margin)
}

func TestRiskRatio(t *testing.T) {
	e := newTestEngine(t, 100)
	require.Equal(t, domain.TradeOpened, e.Trade(domain.Long, 1000))

	st := e.Snapshot()
	// maintenance = 20000*0.05 = 1000; equity = 9000+1000+0 = 10000
	assert.InDelta(t, 0.1, st.RiskRatio, 1e-9)

	tickTo(e, 60) // uPnL = -8000, equity 2000
	st = e.Snapshot()
	assert.InDelta(t, 0.5, st.RiskRatio, 1e-9)
}

func TestBalanceNeverNegative(t *testing.T) {
	e := newTestEngine(t, 100)

	script := []struct {
		side   domain.PositionType
		margin float64
		price  float64
	}{
		{domain.Long, 1000, 100},
		{domain.Short, 2000, 92},
		{domain.Short, 5000, 85},
		{domain.Long, 9000, 88},
		{domain.Short, 123.45, 70},
		{domain.Long, 20000, 71},
	}
	for _, step := range script {
		tickTo(e, step.price)
		e.Trade(step.side, step.margin)

		st := e.Snapshot()
		assert.GreaterOrEqual(t, st.Wallet.Balance, 0.0)
		if st.Position != nil {
			assert.Greater(t, st.Position.Margin, 0.0)
			assert.Greater(t, st.Position.EntryPrice, 0.0)
			assert.GreaterOrEqual(t, st.Position.LiquidationPrice, 0.0)
		}
	}
}
