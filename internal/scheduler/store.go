package scheduler

import (
	"context"
	"time"

	"github.com/finclass/bank-sim/internal/models"
)

// Store is the slice of persistence the scheduler needs. It is implemented
// by repository.Repository and by the in-memory double used in tests.
type Store interface {
	// Account returns one account with its history and schedules loaded.
	Account(ctx context.Context, id int64) (*models.Account, error)

	// AccountsWithSchedules returns every account that has at least one
	// scheduled transaction, with bills and payments populated.
	AccountsWithSchedules(ctx context.Context) ([]*models.Account, error)

	// ApplyTransaction appends entry to the account's history and resets
	// the stored balance to the sum of all history rows, as one atomic
	// write. It returns the new balance.
	ApplyTransaction(ctx context.Context, accountID int64, entry *models.Transaction) (float64, error)

	// SetNextExecution persists a recomputed next-due date.
	SetNextExecution(ctx context.Context, accountID int64, txID string, next time.Time) error

	// RemoveScheduled deletes a scheduled transaction definition.
	RemoveScheduled(ctx context.Context, accountID int64, txID string) error

	// LatestShutdown returns the most recent shutdown record timestamp,
	// or the zero time when none has ever been written.
	LatestShutdown(ctx context.Context) (time.Time, error)

	// RecordShutdown appends a shutdown record.
	RecordShutdown(ctx context.Context, at time.Time) error

	// CatchupStats aggregates history entries flagged as catch-up since
	// the given moment.
	CatchupStats(ctx context.Context, since time.Time) (*models.CatchupStats, error)
}

// Notifier receives a best-effort notification for every applied
// transaction. Implementations must not block.
type Notifier interface {
	Notify(n models.Notification)
}

// RateSource yields the current annual interest rate in percent, used for
// interest-category payments whose amount is derived at execution time.
type RateSource interface {
	AnnualRate() float64
}
