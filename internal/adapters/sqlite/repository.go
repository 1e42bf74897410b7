package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tradearena/internal/domain"
	"tradearena/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.RoundRepository using SQLite. Only finished
// round outcomes are archived; individual trades never leave the session.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/tradearena.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from a
	// single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Round archive ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS rounds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP NOT NULL,
		final_balance REAL NOT NULL,
		realized_pnl REAL NOT NULL,
		final_pnl REAL NOT NULL,
		liquidated INTEGER NOT NULL,
		trades INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rounds_ended_at ON rounds (ended_at);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing round archive")
		return r.db.Close()
	}
	return nil
}

// Create saves a round result and returns its assigned ID.
func (r *Repository) Create(ctx context.Context, res *domain.RoundResult) (int64, error) {
	const query = `
	INSERT INTO rounds (room_id, started_at, ended_at, final_balance, realized_pnl, final_pnl, liquidated, trades)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		res.RoomID, res.StartedAt, res.EndedAt, res.FinalBalance, res.RealizedPnL, res.FinalPnL, res.Liquidated, res.Trades)
	if err != nil {
		return 0, fmt.Errorf("failed to insert round for room %s: %w", res.RoomID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for round in room %s: %w", res.RoomID, err)
	}
	res.ID = id
	r.logger.Debug(ctx, "Round archived", map[string]interface{}{"roundID": id, "roomID": res.RoomID, "finalPnL": res.FinalPnL})
	return id, nil
}

// FindRecent retrieves the most recent round results, ordered by end time
// descending.
func (r *Repository) FindRecent(ctx context.Context, limit int) ([]*domain.RoundResult, error) {
	const query = `
	SELECT id, room_id, started_at, ended_at, final_balance, realized_pnl, final_pnl, liquidated, trades
	FROM rounds ORDER BY ended_at DESC, id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: querying recent rounds: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	var results []*domain.RoundResult
	for rows.Next() {
		var res domain.RoundResult
		if err := rows.Scan(&res.ID, &res.RoomID, &res.StartedAt, &res.EndedAt,
			&res.FinalBalance, &res.RealizedPnL, &res.FinalPnL, &res.Liquidated, &res.Trades); err != nil {
			return nil, fmt.Errorf("%w: scanning round row: %v", ports.ErrQueryFailed, err)
		}
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating round rows: %v", ports.ErrQueryFailed, err)
	}
	return results, nil
}

// TotalPnL calculates the sum of final PnL across all archived rounds.
func (r *Repository) TotalPnL(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(SUM(final_pnl), 0) FROM rounds`

	var total float64
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("%w: summing round pnl: %v", ports.ErrQueryFailed, err)
	}
	return total, nil
}
