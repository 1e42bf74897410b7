package memory

import (
	"context"
	"sort"
	"sync"

	"tradearena/internal/domain"
)

// Repository is an in-memory ports.RoundRepository, used when no DB path is
// configured and in tests.
type Repository struct {
	mu     sync.RWMutex
	nextID int64
	rounds []*domain.RoundResult
}

// NewRepository creates an empty in-memory round archive.
func NewRepository() *Repository {
	return &Repository{nextID: 1}
}

// Create saves a round result and returns its assigned ID.
func (r *Repository) Create(ctx context.Context, res *domain.RoundResult) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *res
	stored.ID = r.nextID
	r.nextID++
	r.rounds = append(r.rounds, &stored)
	res.ID = stored.ID
	return stored.ID, nil
}

// FindRecent retrieves the most recent round results, ordered by end time
// descending.
func (r *Repository) FindRecent(ctx context.Context, limit int) ([]*domain.RoundResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.RoundResult, 0, len(r.rounds))
	for _, res := range r.rounds {
		copied := *res
		out = append(out, &copied)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EndedAt.Equal(out[j].EndedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].EndedAt.After(out[j].EndedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TotalPnL calculates the sum of final PnL across all archived rounds.
func (r *Repository) TotalPnL(ctx context.Context) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total float64
	for _, res := range r.rounds {
		total += res.FinalPnL
	}
	return total, nil
}
