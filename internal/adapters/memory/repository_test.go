package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradearena/internal/domain"
)

func TestCreateAssignsIDs(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	a := &domain.RoundResult{RoomID: "1", EndedAt: time.Unix(100, 0), FinalPnL: 10}
	b := &domain.RoundResult{RoomID: "1", EndedAt: time.Unix(200, 0), FinalPnL: 20}

	idA, err := repo.Create(ctx, a)
	require.NoError(t, err)
	idB, err := repo.Create(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, idA+1, idB)
}

func TestFindRecentOrderAndLimit(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := repo.Create(ctx, &domain.RoundResult{
			RoomID:   "1",
			EndedAt:  time.Unix(int64(100*i), 0),
			FinalPnL: float64(i),
		})
		require.NoError(t, err)
	}

	recent, err := repo.FindRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.InDelta(t, 3.0, recent[0].FinalPnL, 1e-9)
	assert.InDelta(t, 2.0, recent[1].FinalPnL, 1e-9)

	// Stored rounds are isolated from caller mutation.
	recent[0].FinalPnL = 999
	again, err := repo.FindRecent(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, again[0].FinalPnL, 1e-9)
}

func TestTotalPnL(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	total, err := repo.TotalPnL(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)

	_, err = repo.Create(ctx, &domain.RoundResult{FinalPnL: 1500})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &domain.RoundResult{FinalPnL: -500})
	require.NoError(t, err)

	total, err = repo.TotalPnL(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, total, 1e-9)
}
