package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradearena/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Round Parameters
	InitialBalance        float64       // virtual buy-in balance each round starts with
	Leverage              int           // position size multiplier
	MaintenanceMarginRate float64       // fraction of position size that must remain as equity
	RoundDuration         time.Duration // wall-clock length of a round
	TickInterval          time.Duration // wall-clock interval between feed ticks

	// Feed Parameters
	HistoryBars int     // candles of backfill shown before the round starts
	StartPrice  float64 // price the historical walk starts from
	TickDrift   float64 // directional bias of live ticks; 0.5 is neutral

	// Lobby Parameters
	RoomID      string
	BuyIn       float64
	MaxPlayers  int
	PlatformFee float64

	// Database
	DBPath string // empty selects the in-memory round archive

	// HTTP
	ServerPort string

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	cfg.InitialBalance, err = getEnvAsFloatRequired("INITIAL_BALANCE", 10000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid INITIAL_BALANCE: %v", err))
	} else if cfg.InitialBalance <= 0 {
		errs = append(errs, "INITIAL_BALANCE must be positive")
	}

	cfg.Leverage, err = getEnvAsIntRequired("LEVERAGE", 20)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LEVERAGE: %v", err))
	} else if cfg.Leverage <= 0 {
		errs = append(errs, "LEVERAGE must be positive")
	}

	cfg.MaintenanceMarginRate, err = getEnvAsFloatRequired("MAINTENANCE_MARGIN_RATE", 0.05)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAINTENANCE_MARGIN_RATE: %v", err))
	} else if cfg.MaintenanceMarginRate <= 0 || cfg.MaintenanceMarginRate >= 1 {
		errs = append(errs, "MAINTENANCE_MARGIN_RATE must be between 0.0 and 1.0 (exclusive)")
	}

	roundSeconds := getEnvAsInt("ROUND_DURATION_SECONDS", 600)
	if roundSeconds <= 0 {
		errs = append(errs, "ROUND_DURATION_SECONDS must be positive")
	}
	cfg.RoundDuration = time.Duration(roundSeconds) * time.Second

	tickMillis := getEnvAsInt("TICK_INTERVAL_MS", 1500)
	if tickMillis <= 0 {
		errs = append(errs, "TICK_INTERVAL_MS must be positive")
	}
	cfg.TickInterval = time.Duration(tickMillis) * time.Millisecond

	cfg.HistoryBars = getEnvAsInt("HISTORY_BARS", 40)
	if cfg.HistoryBars <= 0 {
		errs = append(errs, "HISTORY_BARS must be positive")
	}

	cfg.StartPrice, err = getEnvAsFloatRequired("START_PRICE", 50000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid START_PRICE: %v", err))
	} else if cfg.StartPrice <= 0 {
		errs = append(errs, "START_PRICE must be positive")
	}

	cfg.TickDrift = getEnvAsFloat("TICK_DRIFT", 0.48)
	if cfg.TickDrift <= 0 || cfg.TickDrift >= 1 {
		errs = append(errs, "TICK_DRIFT must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.RoomID = getEnv("ROOM_ID", "1")
	cfg.BuyIn = getEnvAsFloat("BUY_IN", 10)
	if cfg.BuyIn <= 0 {
		errs = append(errs, "BUY_IN must be positive")
	}
	cfg.MaxPlayers = getEnvAsInt("MAX_PLAYERS", 6)
	if cfg.MaxPlayers <= 0 {
		errs = append(errs, "MAX_PLAYERS must be positive")
	}
	cfg.PlatformFee = getEnvAsFloat("PLATFORM_FEE", 0.05)
	if cfg.PlatformFee < 0 || cfg.PlatformFee >= 1 {
		errs = append(errs, "PLATFORM_FEE must be between 0.0 (inclusive) and 1.0 (exclusive)")
	}

	// Empty DB_PATH is allowed and selects the in-memory archive.
	cfg.DBPath = getEnv("DB_PATH", "")

	cfg.ServerPort = getEnv("SERVER_PORT", "8080")
	if cfg.ServerPort == "" {
		errs = append(errs, "SERVER_PORT must be set")
	}

	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}
