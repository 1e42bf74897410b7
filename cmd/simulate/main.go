package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"

	"tradearena/config"
	"tradearena/internal/adapters/logger"
	"tradearena/internal/adapters/memory"
	"tradearena/internal/app"
	"tradearena/internal/domain"
	"tradearena/internal/feed"
	"tradearena/internal/rivals"
)

// simulate plays a headless round against the synthetic feed with a simple
// scripted trader, useful for eyeballing engine behavior under different
// seeds and drifts without the HTTP layer.
func main() {
	seed := flag.Int64("seed", 1, "random seed for the price walk and rival board")
	ticks := flag.Int("ticks", 400, "number of feed ticks to simulate")
	drift := flag.Float64("drift", 0.48, "directional bias of the walk, (0,1)")
	margin := flag.Float64("margin", 1000, "margin committed per scripted trade")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	cfg.TickDrift = *drift

	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(*seed))
	priceFeed := feed.New(feed.Config{Drift: cfg.TickDrift, Rand: rng})
	board := rivals.New(cfg.InitialBalance, rivals.DefaultNames, rand.New(rand.NewSource(*seed+1)))
	repo := memory.NewRepository()

	svc, err := app.NewRoundService(cfg, appLogger, priceFeed, repo, board)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize round service: %v", err)
	}

	// Scripted trader: open a long up front, flip on every tenth tick. Crude
	// on purpose; the point is to exercise every engine branch.
	side := domain.Long
	res := svc.Trade(ctx, side, *margin)
	fmt.Printf("open %s %.2f -> %s\n", side, *margin, res)

	liquidated := false
	for i := 1; i <= *ticks; i++ {
		if svc.Tick(ctx) {
			liquidated = true
			fmt.Printf("tick %d: liquidated\n", i)
			break
		}
		if i%10 == 0 {
			side = side.Opposite()
			res := svc.Trade(ctx, side, 2*(*margin))
			fmt.Printf("tick %d: flip to %s -> %s\n", i, side, res)
		}
	}
	if !liquidated {
		svc.ClosePosition(ctx)
	}

	result, err := svc.Finish(ctx)
	if err != nil {
		log.Fatalf("FATAL: Failed to finish round: %v", err)
	}

	fmt.Println("--- round result ---")
	fmt.Printf("final balance: %10.2f\n", result.FinalBalance)
	fmt.Printf("realized pnl:  %10.2f\n", result.RealizedPnL)
	fmt.Printf("final pnl:     %10.2f\n", result.FinalPnL)
	fmt.Printf("trades:        %10d\n", result.Trades)
	fmt.Printf("liquidated:    %10v\n", result.Liquidated)

	fmt.Println("--- leaderboard ---")
	for i, p := range svc.Snapshot().Leaderboard {
		marker := " "
		if p.You {
			marker = "*"
		}
		fmt.Printf("%d. %s %-12s balance %10.2f pnl %+10.2f\n", i+1, marker, p.Name, p.VirtualBalance, p.PnL)
	}
}
