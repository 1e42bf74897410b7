package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradearena/config"
	"tradearena/internal/domain"
	"tradearena/internal/engine"
	"tradearena/internal/ports"
	"tradearena/internal/rivals"
)

const (
	maxCandleCacheSize = 500 // Limit cache size to avoid memory issues
	userDisplayName    = "YOU"
)

// Frame is the full render state pushed to the UI after every tick.
type Frame struct {
	RoomID      string          `json:"roomId"`
	Remaining   int             `json:"remaining"` // seconds left on the round clock
	Elapsed     int             `json:"elapsed"`
	Candles     []domain.Candle `json:"candles"`
	State       engine.State    `json:"state"`
	Leaderboard []domain.Player `json:"leaderboard"`
}

// RoundService is the session controller for one trading round. It owns the
// engine, the price feed, and the rival board, and serializes trade actions
// against tick evaluation: within a round every operation is one atomic
// transition under a single mutex.
type RoundService struct {
	cfg    *config.Config
	logger ports.Logger
	feed   ports.PriceFeed
	repo   ports.RoundRepository

	mu         sync.Mutex
	engine     *engine.Engine
	board      *rivals.Board
	candles    []domain.Candle
	tradeCount int
	startedAt  time.Time
	remaining  int
	finished   bool
	result     *domain.RoundResult
	notify     func(Frame)
}

// NewRoundService backfills the price history and creates a fresh engine for
// one round.
func NewRoundService(
	cfg *config.Config,
	log ports.Logger,
	feed ports.PriceFeed,
	repo ports.RoundRepository,
	board *rivals.Board,
) (*RoundService, error) {
	if cfg == nil || log == nil || feed == nil || repo == nil || board == nil {
		return nil, fmt.Errorf("missing required dependencies for RoundService")
	}

	candles := feed.GenerateHistory(cfg.HistoryBars, cfg.StartPrice)
	if len(candles) == 0 {
		return nil, fmt.Errorf("price feed produced no historical candles")
	}

	eng, err := engine.New(engine.Config{
		InitialBalance:        cfg.InitialBalance,
		Leverage:              cfg.Leverage,
		MaintenanceMarginRate: cfg.MaintenanceMarginRate,
	}, candles[len(candles)-1].Close)
	if err != nil {
		return nil, fmt.Errorf("failed to create position engine: %w", err)
	}

	return &RoundService{
		cfg:       cfg,
		logger:    log,
		feed:      feed,
		repo:      repo,
		engine:    eng,
		board:     board,
		candles:   candles,
		startedAt: time.Now().UTC(),
		remaining: int(cfg.RoundDuration / time.Second),
	}, nil
}

// OnUpdate registers a callback invoked with a fresh frame after every tick.
// Must be set before Run starts.
func (s *RoundService) OnUpdate(fn func(Frame)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

// Run drives the round: one feed tick per tick interval and a one-second
// countdown. It returns once the round finishes by timer expiry, liquidation,
// or context cancellation.
func (s *RoundService) Run(ctx context.Context) error {
	s.logger.Info(ctx, "Round started", map[string]interface{}{
		"roomID":    s.cfg.RoomID,
		"duration":  s.cfg.RoundDuration.String(),
		"balance":   s.cfg.InitialBalance,
		"leverage":  s.cfg.Leverage,
		"lastPrice": s.engine.LastPrice(),
	})

	tick := time.NewTicker(s.cfg.TickInterval)
	defer tick.Stop()
	countdown := time.NewTicker(time.Second)
	defer countdown.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Round canceled, finishing early")
			_, err := s.Finish(context.Background())
			return err
		case <-tick.C:
			if liquidated := s.Tick(ctx); liquidated {
				_, err := s.Finish(ctx)
				return err
			}
		case <-countdown.C:
			if expired := s.secondElapsed(); expired {
				s.logger.Info(ctx, "Round timer expired")
				_, err := s.Finish(ctx)
				return err
			}
		}
	}
}

// Tick advances the feed by one candle, re-evaluates the engine, and moves the
// rival board. It returns true when this tick liquidated the position.
func (s *RoundService) Tick(ctx context.Context) bool {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return false
	}

	next := s.feed.NextTick(s.candles[len(s.candles)-1])
	s.candles = append(s.candles, next)
	if len(s.candles) > maxCandleCacheSize {
		s.candles = s.candles[len(s.candles)-maxCandleCacheSize:]
	}

	liquidated := s.engine.OnTick(next)
	s.board.Advance()

	frame := s.buildFrameLocked()
	notify := s.notify
	s.mu.Unlock()

	if liquidated {
		s.logger.Warn(ctx, "Position liquidated", map[string]interface{}{
			"price": next.Close,
		})
	}
	if notify != nil {
		notify(frame)
	}
	return liquidated
}

// Trade forwards a user BUY/SELL action to the engine.
func (s *RoundService) Trade(ctx context.Context, side domain.PositionType, margin float64) domain.TradeResult {
	s.mu.Lock()
	res := s.engine.Trade(side, margin)
	if !res.Rejected() {
		s.tradeCount++
	}
	st := s.engine.Snapshot()
	s.mu.Unlock()

	if res.Rejected() {
		s.logger.Debug(ctx, "Trade rejected", map[string]interface{}{"side": side, "margin": margin, "result": res})
	} else {
		s.logger.Info(ctx, "Trade applied", map[string]interface{}{
			"side":    side,
			"margin":  margin,
			"result":  res,
			"balance": st.Wallet.Balance,
		})
	}
	return res
}

// ClosePosition forwards a user full-close action to the engine.
func (s *RoundService) ClosePosition(ctx context.Context) domain.TradeResult {
	s.mu.Lock()
	res := s.engine.Close()
	if !res.Rejected() {
		s.tradeCount++
	}
	realized := s.engine.Snapshot().Wallet.RealizedPnL
	s.mu.Unlock()

	if res.Rejected() {
		s.logger.Debug(ctx, "Close rejected", map[string]interface{}{"result": res})
	} else {
		s.logger.Info(ctx, "Position closed", map[string]interface{}{"realizedPnL": realized})
	}
	return res
}

// Snapshot returns the current render frame.
func (s *RoundService) Snapshot() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildFrameLocked()
}

// Finish freezes the engine, archives the round outcome, and is idempotent:
// later calls return the stored result.
func (s *RoundService) Finish(ctx context.Context) (*domain.RoundResult, error) {
	s.mu.Lock()
	if s.finished {
		res := s.result
		s.mu.Unlock()
		return res, nil
	}

	finalPnL := s.engine.EndRound()
	st := s.engine.Snapshot()
	result := &domain.RoundResult{
		RoomID:       s.cfg.RoomID,
		StartedAt:    s.startedAt,
		EndedAt:      time.Now().UTC(),
		FinalBalance: st.Wallet.Balance,
		RealizedPnL:  st.Wallet.RealizedPnL,
		FinalPnL:     finalPnL,
		Liquidated:   st.Status == domain.RoundLiquidated,
		Trades:       s.tradeCount,
	}
	s.finished = true
	s.result = result
	s.mu.Unlock()

	if _, err := s.repo.Create(ctx, result); err != nil {
		s.logger.Error(ctx, err, "Failed to archive round result")
		return result, fmt.Errorf("failed to archive round result: %w", err)
	}
	s.logger.Info(ctx, "Round finished", map[string]interface{}{
		"finalPnL":   result.FinalPnL,
		"liquidated": result.Liquidated,
		"trades":     result.Trades,
	})
	return result, nil
}

// secondElapsed decrements the round clock and reports expiry.
func (s *RoundService) secondElapsed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return true
	}
	if s.remaining > 0 {
		s.remaining--
	}
	return s.remaining <= 0
}

// buildFrameLocked assembles a frame; the caller holds s.mu.
func (s *RoundService) buildFrameLocked() Frame {
	st := s.engine.Snapshot()

	candles := make([]domain.Candle, len(s.candles))
	copy(candles, s.candles)

	board := s.board.Players()
	leaderboard := make([]domain.Player, 0, len(board)+1)
	leaderboard = append(leaderboard, domain.Player{
		Name:           userDisplayName,
		Avatar:         userDisplayName,
		VirtualBalance: st.Equity,
		PnL:            st.TotalPnL,
		InTrade:        st.Position != nil,
		You:            true,
	})
	leaderboard = append(leaderboard, board...)

	total := int(s.cfg.RoundDuration / time.Second)
	return Frame{
		RoomID:      s.cfg.RoomID,
		Remaining:   s.remaining,
		Elapsed:     total - s.remaining,
		Candles:     candles,
		State:       st,
		Leaderboard: leaderboard,
	}
}
