package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/finclass/bank-sim/internal/models"
	"github.com/finclass/bank-sim/internal/schedule"
)

// persistAttempts bounds in-pass retries of a due-date write.
const persistAttempts = 3

// Engine replays scheduled transactions whose due dates fell inside the
// silent window between the last recorded shutdown and now. It must run to
// completion before the live scheduler arms any timers.
type Engine struct {
	store    Store
	applier  *Applier
	fallback time.Duration
	log      *logrus.Logger

	now func() time.Time
}

// NewEngine initializes a catch-up engine. fallback bounds the replay window
// when no shutdown record exists.
func NewEngine(store Store, applier *Applier, fallback time.Duration, log *logrus.Logger) *Engine {
	return &Engine{
		store:    store,
		applier:  applier,
		fallback: fallback,
		log:      log,
		now:      time.Now,
	}
}

// Run scans all accounts for missed executions and replays each one with its
// original due date, flagged as catch-up. A single broken transaction is
// logged and skipped, never halting the pass. The result is returned instead
// of an error so callers can decide whether to retry.
//
// Only the single next-execution date on record is replayed per transaction;
// intermediate occurrences of a silent window spanning several cycles are not
// reconstructed. The schedule is re-anchored forward after the replay.
func (e *Engine) Run(ctx context.Context) *models.CatchupResult {
	res := &models.CatchupResult{}
	now := e.now()

	checkFrom, err := e.store.LatestShutdown(ctx)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if checkFrom.IsZero() {
		checkFrom = now.Add(-e.fallback)
	}
	e.log.Infof("Catch-up pass started, silent window since %s", checkFrom.Format(time.RFC3339))

	accounts, err := e.store.AccountsWithSchedules(ctx)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	for _, account := range accounts {
		for _, tx := range account.Scheduled() {
			if tx.Interval == models.IntervalOnce {
				continue
			}
			res.TotalProcessed++
			if e.replay(ctx, account, tx, checkFrom, now) {
				res.TotalMissed++
			}
		}
	}

	res.Success = true
	e.log.Infof("Catch-up pass finished: %d checked, %d replayed", res.TotalProcessed, res.TotalMissed)
	return res
}

// replay applies one transaction if its due date was missed inside the
// window. Due dates falling on the current calendar day are left untouched:
// the live scheduler's own timer fires those.
func (e *Engine) replay(ctx context.Context, account *models.Account, tx *models.ScheduledTransaction, checkFrom, now time.Time) bool {
	if tx.NextExecution == nil {
		// A recurring schedule without a date would stay invisible to both
		// the live scheduler and this pass forever. Settle one so the next
		// occurrence gets armed.
		due, err := FirstDue(now, tx)
		if err != nil {
			e.log.Errorf("Cannot settle dateless schedule %q on account %d: %v", tx.Name, account.ID, err)
			return false
		}
		if err := e.setNextExecution(ctx, account.ID, tx.ID, due); err != nil {
			e.log.Errorf("Failed to settle dateless schedule %q on account %d: %v", tx.Name, account.ID, err)
			return false
		}
		e.log.Warnf("Settled dateless schedule %q on account %d: next execution %s", tx.Name, account.ID, due.Format(time.RFC3339))
		tx.NextExecution = &due
		return false
	}
	due := *tx.NextExecution
	if !due.After(checkFrom) || !due.Before(now) || sameDay(due, now) {
		return false
	}

	if _, err := e.applier.Apply(ctx, account, tx, due, true); err != nil {
		e.log.Errorf("Catch-up apply failed for %q on account %d: %v", tx.Name, account.ID, err)
		return false
	}

	next, err := schedule.NextDue(now, due, tx.CreationDate, tx.Interval)
	if err != nil {
		e.log.Errorf("Catch-up reschedule failed for %q on account %d: %v", tx.Name, account.ID, err)
		return true
	}
	if err := e.setNextExecution(ctx, account.ID, tx.ID, next); err != nil {
		e.log.Errorf("Catch-up persist failed for %q on account %d: %v", tx.Name, account.ID, err)
		return true
	}
	tx.NextExecution = &next
	return true
}

// setNextExecution persists a due date with a few retries. The replay before
// it has already hit the history, so giving up on the first transient error
// would leave the old date on record and apply the same occurrence again on
// the next pass.
func (e *Engine) setNextExecution(ctx context.Context, accountID int64, txID string, next time.Time) error {
	var err error
	for attempt := 0; attempt < persistAttempts; attempt++ {
		if err = e.store.SetNextExecution(ctx, accountID, txID, next); err == nil {
			return nil
		}
	}
	return err
}

// Stats aggregates catch-up history entries over the last days days.
func (e *Engine) Stats(ctx context.Context, days int) (*models.CatchupStats, error) {
	since := e.now().AddDate(0, 0, -days)
	return e.store.CatchupStats(ctx, since)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
