package ports

import (
	"context"

	"tradearena/internal/domain"
)

// RoundRepository defines the interface for archiving finished round outcomes.
type RoundRepository interface {
	// Create saves a round result and returns its assigned ID.
	Create(ctx context.Context, res *domain.RoundResult) (int64, error)
	// FindRecent retrieves the most recent round results, up to a limit,
	// ordered by end time descending.
	FindRecent(ctx context.Context, limit int) ([]*domain.RoundResult, error)
	// TotalPnL calculates the sum of final PnL across all archived rounds.
	TotalPnL(ctx context.Context) (float64, error)
}
