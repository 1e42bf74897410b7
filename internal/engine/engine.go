package engine

import (
	"fmt"
	"math"

	"tradearena/internal/domain"
)

// riskEpsilon guards the risk ratio against division by a vanishing equity.
const riskEpsilon = 1e-9

// Config holds the fixed parameters an engine is created with for one round.
type Config struct {
	InitialBalance        float64
	Leverage              int     // integer multiplier converting margin into position size
	MaintenanceMarginRate float64 // fraction of position size that must remain as equity
}

// Engine is the margin-trading state machine for a single trader in a single
// round. It owns the virtual wallet and at most one open leveraged position,
// consumes price ticks, and applies every trade action as one atomic
// transition: wallet, position, and liquidation price always move together.
//
// The engine is not goroutine safe. Each round has exactly one logical owner
// (the session controller) which serializes trade actions against tick
// evaluation.
type Engine struct {
	cfg    Config
	wallet domain.Wallet
	status domain.RoundStatus

	// Flat vs. open is an explicit tag; pos is the payload and only
	// meaningful while open is true.
	open bool
	pos  domain.Position

	lastPrice float64
}

// New creates an engine with a full wallet and no position.
// startPrice is the close of the most recent historical candle.
func New(cfg Config, startPrice float64) (*Engine, error) {
	if cfg.InitialBalance <= 0 {
		return nil, fmt.Errorf("initial balance must be positive, got %f", cfg.InitialBalance)
	}
	if cfg.Leverage <= 0 {
		return nil, fmt.Errorf("leverage must be positive, got %d", cfg.Leverage)
	}
	if cfg.MaintenanceMarginRate <= 0 || cfg.MaintenanceMarginRate >= 1 {
		return nil, fmt.Errorf("maintenance margin rate must be between 0 and 1, got %f", cfg.MaintenanceMarginRate)
	}
	if startPrice <= 0 {
		return nil, fmt.Errorf("start price must be positive, got %f", startPrice)
	}
	return &Engine{
		cfg:       cfg,
		wallet:    domain.Wallet{Balance: cfg.InitialBalance},
		status:    domain.RoundActive,
		lastPrice: startPrice,
	}, nil
}

// State is a read-only snapshot of the engine for rendering.
type State struct {
	Wallet        domain.Wallet      `json:"wallet"`
	Position      *domain.Position   `json:"position"` // nil when flat; a copy, never engine-owned
	Status        domain.RoundStatus `json:"status"`
	LastPrice     float64            `json:"lastPrice"`
	UnrealizedPnL float64            `json:"unrealizedPnL"`
	Equity        float64            `json:"equity"`
	RiskRatio     float64            `json:"riskRatio"` // maintenance margin / equity, >= 0
	TotalPnL      float64            `json:"totalPnL"`  // realized + unrealized
}

// Snapshot returns the current state with derived metrics. Calling it twice
// without an intervening mutation yields identical values.
func (e *Engine) Snapshot() State {
	st := State{
		Wallet:    e.wallet,
		Status:    e.status,
		LastPrice: e.lastPrice,
		Equity:    e.wallet.Balance,
	}
	if e.open {
		p := e.pos
		st.Position = &p
		st.UnrealizedPnL = e.unrealizedPnL(e.lastPrice)
		st.Equity = e.equity(e.lastPrice)
		st.RiskRatio = e.riskRatio(e.lastPrice)
	}
	st.TotalPnL = e.wallet.RealizedPnL + st.UnrealizedPnL
	return st
}

// Status returns the round lifecycle state.
func (e *Engine) Status() domain.RoundStatus { return e.status }

// LastPrice returns the close of the most recently consumed candle.
func (e *Engine) LastPrice() float64 { return e.lastPrice }

// Trade is the unified BUY/SELL entry point: depending on the current state it
// opens a fresh position, pyramids into the same side, or reduces/flips an
// opposite-side position. A rejected operation mutates nothing.
func (e *Engine) Trade(side domain.PositionType, marginDelta float64) domain.TradeResult {
	if e.status.Over() {
		return domain.TradeRejectedRoundOver
	}
	if math.IsNaN(marginDelta) || math.IsInf(marginDelta, 0) || marginDelta <= 0 {
		return domain.TradeRejectedInvalidMargin
	}
	if side != domain.Long && side != domain.Short {
		return domain.TradeRejectedInvalidMargin
	}

	price := e.lastPrice
	switch {
	case !e.open:
		if marginDelta > e.wallet.Balance {
			return domain.TradeRejectedInsufficientFunds
		}
		e.wallet.Balance -= marginDelta
		e.pos = domain.Position{Type: side, EntryPrice: price, Margin: marginDelta}
		e.open = true
		e.pos.LiquidationPrice = e.liquidationPrice()
		return domain.TradeOpened

	case e.pos.Type == side:
		if marginDelta > e.wallet.Balance {
			return domain.TradeRejectedInsufficientFunds
		}
		// Margin-weighted cost basis, not a naive average of the two prices.
		newMargin := e.pos.Margin + marginDelta
		e.pos.EntryPrice = (e.pos.EntryPrice*e.pos.Margin + price*marginDelta) / newMargin
		e.pos.Margin = newMargin
		e.wallet.Balance -= marginDelta
		e.pos.LiquidationPrice = e.liquidationPrice()
		return domain.TradeAdded

	default:
		return e.reduceOrFlip(side, marginDelta, price)
	}
}

// reduceOrFlip handles an opposite-side trade: partial close when the delta is
// smaller than the open margin, otherwise full close with an optional flip
// into a new position sized at the excess.
func (e *Engine) reduceOrFlip(side domain.PositionType, marginDelta, price float64) domain.TradeResult {
	pnl := e.unrealizedPnL(price)
	ratio := marginDelta / e.pos.Margin

	if ratio >= 1 {
		excess := marginDelta - e.pos.Margin
		afterClose := e.wallet.Balance + e.pos.Margin + pnl
		if afterClose < 0 {
			afterClose = 0
		}
		e.wallet.RealizedPnL += pnl
		e.open = false
		e.pos = domain.Position{}

		if excess > 0 && afterClose >= excess {
			e.wallet.Balance = afterClose - excess
			e.pos = domain.Position{Type: side, EntryPrice: price, Margin: excess}
			e.open = true
			e.pos.LiquidationPrice = e.liquidationPrice()
			return domain.TradeFlipped
		}
		e.wallet.Balance = afterClose
		if excess > 0 {
			// Named permissive fallback: the just-credited wallet cannot cover
			// the intended opposite position, so the excess is dropped.
			return domain.TradeClosedExcessDropped
		}
		return domain.TradeClosed
	}

	realized := pnl * ratio
	e.wallet.RealizedPnL += realized
	e.wallet.Balance = math.Max(0, e.wallet.Balance+marginDelta+realized)
	// Entry price is unchanged on a partial close; only the size shrinks and
	// the liquidation level moves.
	e.pos.Margin -= marginDelta
	e.pos.LiquidationPrice = e.liquidationPrice()
	return domain.TradeReduced
}

// Close realizes the full PnL at the last seen price and clears the position.
func (e *Engine) Close() domain.TradeResult {
	if e.status.Over() {
		return domain.TradeRejectedRoundOver
	}
	if !e.open {
		return domain.TradeRejectedNoPosition
	}
	pnl := e.unrealizedPnL(e.lastPrice)
	e.wallet.RealizedPnL += pnl
	e.wallet.Balance = math.Max(0, e.wallet.Balance+e.pos.Margin+pnl)
	e.open = false
	e.pos = domain.Position{}
	return domain.TradeClosed
}

// OnTick consumes one new candle, updating the mark price and checking the
// liquidation trigger. It returns true when this tick liquidated the position.
// After the round is over the mark price keeps tracking the feed but nothing
// else mutates.
func (e *Engine) OnTick(c domain.Candle) bool {
	e.lastPrice = c.Close
	if e.status.Over() || !e.open {
		return false
	}

	triggered := (e.pos.Type == domain.Long && c.Close <= e.pos.LiquidationPrice) ||
		(e.pos.Type == domain.Short && c.Close >= e.pos.LiquidationPrice)
	if !triggered {
		return false
	}

	// Total account wipeout: one-way transition, the round is over for this
	// trader.
	e.open = false
	e.pos = domain.Position{}
	e.wallet.Balance = 0
	e.wallet.RealizedPnL = -e.cfg.InitialBalance
	e.status = domain.RoundLiquidated
	return true
}

// EndRound freezes the engine when the round timer expires and returns the
// final ranking PnL: realized plus the unrealized PnL of whatever position is
// still open at that instant.
func (e *Engine) EndRound() float64 {
	if e.status == domain.RoundActive {
		e.status = domain.RoundEnded
	}
	return e.wallet.RealizedPnL + e.unrealizedPnL(e.lastPrice)
}

// --- Derived quantities (pure functions of current state + price) ---

func (e *Engine) positionSize() float64 {
	return e.pos.Size(e.cfg.Leverage)
}

func (e *Engine) unrealizedPnL(price float64) float64 {
	if !e.open {
		return 0
	}
	return e.pos.UnrealizedPnL(price, e.cfg.Leverage)
}

// equity counts the committed margin back in: it is at risk, not spent.
func (e *Engine) equity(price float64) float64 {
	return e.wallet.Balance + e.pos.Margin + e.unrealizedPnL(price)
}

func (e *Engine) riskRatio(price float64) float64 {
	maintenance := e.positionSize() * e.cfg.MaintenanceMarginRate
	eq := e.equity(price)
	if eq < riskEpsilon {
		eq = riskEpsilon
	}
	return math.Max(0, maintenance/eq)
}

// liquidationPrice solves for the price at which equity exactly meets the
// maintenance requirement. The current free wallet balance enters the formula,
// so the result is path dependent and must be recomputed, never cached, on
// every change to margin, entry price, side, or balance.
func (e *Engine) liquidationPrice() float64 {
	size := e.positionSize()
	if size <= 0 {
		return 0
	}
	maintenance := size * e.cfg.MaintenanceMarginRate
	var liq float64
	switch e.pos.Type {
	case domain.Long:
		liq = (maintenance - e.wallet.Balance - e.pos.Margin + size) * e.pos.EntryPrice / size
	case domain.Short:
		liq = e.pos.EntryPrice * (1 - (maintenance-e.wallet.Balance-e.pos.Margin)/size)
	}
	return math.Max(0, liq)
}
