package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os/signal"
	"syscall"

	"tradearena/config"
	"tradearena/internal/adapters/logger"
	"tradearena/internal/adapters/memory"
	"tradearena/internal/adapters/sqlite"
	"tradearena/internal/app"
	"tradearena/internal/feed"
	"tradearena/internal/ports"
	"tradearena/internal/rivals"
	"tradearena/internal/server"
	"tradearena/internal/tournament"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Round Archive (sqlite when a path is set, in-memory otherwise)
	var repo ports.RoundRepository
	if cfg.DBPath != "" {
		sqlRepo, err := sqlite.NewRepository(sqlite.Config{
			DBPath: cfg.DBPath,
			Logger: appLogger,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize round archive")
			log.Fatalf("FATAL: Failed to initialize round archive: %v", err)
		}
		defer func() {
			if err := sqlRepo.Close(); err != nil {
				appLogger.Error(context.Background(), err, "Error closing round archive")
			}
		}()
		repo = sqlRepo
		appLogger.Info(context.Background(), "Round archive initialized", map[string]interface{}{"path": cfg.DBPath})
	} else {
		repo = memory.NewRepository()
		appLogger.Info(context.Background(), "Using in-memory round archive")
	}

	// 4. Initialize Price Feed
	priceFeed := feed.New(feed.Config{Drift: cfg.TickDrift})
	appLogger.Info(context.Background(), "Price feed initialized", map[string]interface{}{
		"startPrice": cfg.StartPrice,
		"drift":      cfg.TickDrift,
	})

	// 5. Initialize Lobby and Rival Board
	lobby := tournament.NewLobby(cfg.PlatformFee)
	lobby.Seed()
	board := rivals.New(cfg.InitialBalance, rivals.DefaultNames, nil)

	// 6. Initialize Round Service
	roundService, err := app.NewRoundService(cfg, appLogger, priceFeed, repo, board)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize round service")
		log.Fatalf("FATAL: Failed to initialize round service: %v", err)
	}
	appLogger.Info(context.Background(), "Round service initialized")

	// 7. Start the round loop and the API server; either one exiting (or a
	// termination signal) brings the other down.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(roundService, lobby, repo, appLogger)

	errCh := make(chan error, 2)
	go func() {
		errCh <- roundService.Run(ctx)
	}()
	go func() {
		errCh <- srv.Start(ctx, cfg.ServerPort)
	}()

	if err := <-errCh; err != nil {
		appLogger.Error(context.Background(), err, "Service exited with error")
		stop()
		<-errCh
		log.Fatalf("FATAL: Service exited with error: %v", err)
	}
	stop()
	<-errCh

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
