// Package repository persists sessions and ratings and keeps the in-memory
// rating index used for ranking reads.
package repository

import (
	"context"

	"github.com/okian/oarbit/internal/domain/types"
)

// Leaderboard provides ranked reads over current ratings.
type Leaderboard interface {
	// Rank returns the entry for one athlete.
	// Returns ErrNotFound if the athlete has no rating.
	Rank(ctx context.Context, athleteID string) (types.Entry, error)

	// TopN returns the top-N entries ordered by rating desc.
	TopN(ctx context.Context, n int) ([]types.Entry, error)

	// Snapshot returns every ranked entry. The slice is a copy.
	Snapshot(ctx context.Context) []types.Entry

	// Count returns the number of rated athletes.
	Count(ctx context.Context) int
}
