package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/finclass/bank-sim/internal/models"
	"github.com/finclass/bank-sim/internal/schedule"
)

// applyTimeout bounds the store round-trips of a single timer callback.
const applyTimeout = 30 * time.Second

// timerKey identifies one live timer: account, bill/payment, transaction id.
type timerKey struct {
	accountID int64
	kind      models.Kind
	id        string
}

// timerEntry is the critical section of one scheduled transaction. Its mutex
// serializes fire, reschedule and cancellation; re-arming happens under it so
// a duplicate fire is impossible.
type timerEntry struct {
	mu        sync.Mutex
	timer     *time.Timer
	cancelled bool
}

// Scheduler holds one timer per active scheduled transaction and executes
// each on its due date. Initial due dates come from the store after the
// catch-up engine has settled them; the scheduler never invents a first due
// date on startup.
type Scheduler struct {
	store   Store
	applier *Applier
	log     *logrus.Logger

	now        func() time.Time
	retryDelay time.Duration

	mu      sync.Mutex
	timers  map[timerKey]*timerEntry
	stopped bool
}

// New initializes a live scheduler. Timers are not armed until Start.
func New(store Store, applier *Applier, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		store:      store,
		applier:    applier,
		log:        log,
		now:        time.Now,
		retryDelay: time.Minute,
		timers:     make(map[timerKey]*timerEntry),
	}
}

// Start arms a timer for every persisted next-execution date. The catch-up
// engine must have completed before Start is called, so every date here is
// either in the future or at worst due immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	accounts, err := s.store.AccountsWithSchedules(ctx)
	if err != nil {
		return err
	}

	armed := 0
	for _, account := range accounts {
		for _, tx := range account.Scheduled() {
			if tx.NextExecution == nil {
				continue
			}
			s.arm(account.ID, tx, *tx.NextExecution)
			armed++
		}
	}
	s.log.Infof("Live scheduler started with %d timers", armed)
	return nil
}

// FirstDue derives the initial execution date of a newly created scheduled
// transaction: a one-off fires on its creation date, recurring intervals on
// their first occurrence after now. Callers persist the result together with
// the definition itself so no stored schedule is ever dateless.
func FirstDue(now time.Time, tx *models.ScheduledTransaction) (time.Time, error) {
	if tx.Interval == models.IntervalOnce {
		return tx.CreationDate, nil
	}
	return schedule.NextDue(now, tx.CreationDate, tx.CreationDate, tx.Interval)
}

// Add registers a scheduled transaction created at runtime. A first date
// that is already in the past is applied through the catch-up path with its
// original due date, never silently skipped.
func (s *Scheduler) Add(ctx context.Context, account *models.Account, tx *models.ScheduledTransaction) error {
	now := s.now()

	if tx.NextExecution == nil {
		due, err := FirstDue(now, tx)
		if err != nil {
			return err
		}
		if err := s.store.SetNextExecution(ctx, account.ID, tx.ID, due); err != nil {
			return err
		}
		tx.NextExecution = &due
	}

	if tx.NextExecution.After(now) {
		s.arm(account.ID, tx, *tx.NextExecution)
		return nil
	}

	// Past due on creation: replay with the original date, then schedule forward.
	due := *tx.NextExecution
	if _, err := s.applier.Apply(ctx, account, tx, due, true); err != nil {
		return err
	}
	if tx.Interval == models.IntervalOnce {
		return s.store.RemoveScheduled(ctx, account.ID, tx.ID)
	}
	next, err := schedule.NextDue(now, due, tx.CreationDate, tx.Interval)
	if err != nil {
		return err
	}
	if err := s.store.SetNextExecution(ctx, account.ID, tx.ID, next); err != nil {
		return err
	}
	tx.NextExecution = &next
	s.arm(account.ID, tx, next)
	return nil
}

// Cancel stops and removes the live timer of a scheduled transaction. When
// Cancel returns, no execution of that transaction will be applied anymore;
// callers delete the persisted record after this acknowledgement.
func (s *Scheduler) Cancel(accountID int64, kind models.Kind, txID string) {
	key := timerKey{accountID: accountID, kind: kind, id: txID}

	s.mu.Lock()
	entry := s.timers[key]
	delete(s.timers, key)
	s.mu.Unlock()

	if entry == nil {
		return
	}
	entry.mu.Lock()
	entry.cancelled = true
	if entry.timer != nil {
		entry.timer.Stop()
	}
	entry.mu.Unlock()
}

// arm replaces the map entry for the transaction with a fresh timer. An old
// entry is merely superseded, not stopped: its callback notices it no longer
// owns the key and returns without applying anything.
func (s *Scheduler) arm(accountID int64, tx *models.ScheduledTransaction, due time.Time) {
	key := timerKey{accountID: accountID, kind: tx.Kind, id: tx.ID}
	entry := &timerEntry{}

	delay := due.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	entry.timer = time.AfterFunc(delay, func() { s.fire(key, entry, tx, due) })
	s.timers[key] = entry
}

// fire runs one timer expiry: apply, recompute the next date, persist it,
// re-arm. The whole sequence holds the entry mutex, making it the
// per-transaction critical section required to rule out duplicate fires and
// post-cancellation applies.
func (s *Scheduler) fire(key timerKey, entry *timerEntry, tx *models.ScheduledTransaction, due time.Time) {
	s.mu.Lock()
	owner := s.timers[key] == entry && !s.stopped
	s.mu.Unlock()
	if !owner {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.cancelled {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), applyTimeout)
	defer cancel()
	now := s.now()

	account, err := s.store.Account(ctx, key.accountID)
	if err != nil {
		// Nothing applied yet, so firing again with the same date is safe.
		s.log.Errorf("Timer fire could not load account %d, retrying in %s: %v", key.accountID, s.retryDelay, err)
		s.rearm(key, entry, tx, due)
		return
	}

	if _, err := s.applier.Apply(ctx, account, tx, now, false); err != nil {
		s.log.Errorf("Timer fire failed for %q on account %d, retrying in %s: %v", tx.Name, key.accountID, s.retryDelay, err)
		s.rearm(key, entry, tx, due)
		return
	}

	if tx.Interval == models.IntervalOnce {
		if err := s.store.RemoveScheduled(ctx, key.accountID, tx.ID); err != nil {
			s.log.Errorf("Failed to remove fired once transaction %q: %v", tx.Name, err)
		}
		s.remove(key)
		return
	}

	next, err := schedule.NextDue(now, due, tx.CreationDate, tx.Interval)
	if err != nil {
		s.log.Errorf("Reschedule failed for %q on account %d: %v", tx.Name, key.accountID, err)
		s.remove(key)
		return
	}
	perr := s.store.SetNextExecution(ctx, key.accountID, tx.ID, next)
	for attempt := 1; perr != nil && attempt < persistAttempts; attempt++ {
		perr = s.store.SetNextExecution(ctx, key.accountID, tx.ID, next)
	}
	if perr != nil {
		// Applied but not rescheduled. Retrying the whole fire would apply
		// twice, so the timer is dropped and the sweep settles the record.
		s.log.Errorf("Failed to persist next execution for %q: %v", tx.Name, perr)
		s.remove(key)
		return
	}

	// Persisted; only now is re-arming safe. The entry mutex is still held,
	// so a concurrent Cancel observes either this timer or none.
	s.mu.Lock()
	if !s.stopped && s.timers[key] == entry {
		entry.timer = time.AfterFunc(next.Sub(s.now()), func() { s.fire(key, entry, tx, next) })
	}
	s.mu.Unlock()
}

// rearm schedules another fire attempt for the same due date after a
// transient store error. The caller holds the entry mutex; the new callback
// cannot run until it is released.
func (s *Scheduler) rearm(key timerKey, entry *timerEntry, tx *models.ScheduledTransaction, due time.Time) {
	s.mu.Lock()
	if !s.stopped && s.timers[key] == entry {
		entry.timer = time.AfterFunc(s.retryDelay, func() { s.fire(key, entry, tx, due) })
	}
	s.mu.Unlock()
}

func (s *Scheduler) remove(key timerKey) {
	s.mu.Lock()
	delete(s.timers, key)
	s.mu.Unlock()
}
