package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/finclass/bank-sim/internal/models"
)

// memStore is an in-memory Store double. It mirrors the atomicity contract
// of the SQL repository: ApplyTransaction appends and recomputes the balance
// under one lock.
type memStore struct {
	mu        sync.Mutex
	accounts  map[int64]*models.Account
	shutdowns []time.Time
	nextTxID  int64

	failApplyFor   map[string]bool // transaction name -> fail
	failApplyTimes map[string]int  // transaction name -> remaining transient failures
	failSetNextFor map[string]int  // scheduled id -> remaining transient failures
	failListing    bool
}

func newMemStore(accounts ...*models.Account) *memStore {
	s := &memStore{accounts: make(map[int64]*models.Account)}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *memStore) Account(_ context.Context, id int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, errors.New("account not found")
	}
	return a, nil
}

func (s *memStore) AccountsWithSchedules(_ context.Context) ([]*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failListing {
		return nil, errors.New("store unavailable")
	}
	var out []*models.Account
	for _, a := range s.accounts {
		if len(a.Bills)+len(a.Payments) > 0 {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) ApplyTransaction(_ context.Context, accountID int64, entry *models.Transaction) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failApplyFor[entry.Name] {
		return 0, errors.New("write conflict")
	}
	if n := s.failApplyTimes[entry.Name]; n > 0 {
		s.failApplyTimes[entry.Name] = n - 1
		return 0, errors.New("write conflict")
	}
	a, ok := s.accounts[accountID]
	if !ok {
		return 0, errors.New("account not found")
	}
	s.nextTxID++
	entry.ID = s.nextTxID
	entry.CreatedAt = time.Now()
	a.History = append(a.History, *entry)

	sum := 0.0
	for _, h := range a.History {
		sum += h.Amount
	}
	a.Balance = sum
	return sum, nil
}

func (s *memStore) SetNextExecution(_ context.Context, accountID int64, txID string, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.failSetNextFor[txID]; n > 0 {
		s.failSetNextFor[txID] = n - 1
		return errors.New("write conflict")
	}
	a, ok := s.accounts[accountID]
	if !ok {
		return errors.New("account not found")
	}
	for _, tx := range a.Scheduled() {
		if tx.ID == txID {
			due := next
			tx.NextExecution = &due
			return nil
		}
	}
	return errors.New("scheduled transaction not found")
}

func (s *memStore) RemoveScheduled(_ context.Context, accountID int64, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return errors.New("account not found")
	}
	a.Bills = withoutTx(a.Bills, txID)
	a.Payments = withoutTx(a.Payments, txID)
	return nil
}

func withoutTx(txs []*models.ScheduledTransaction, id string) []*models.ScheduledTransaction {
	out := txs[:0]
	for _, tx := range txs {
		if tx.ID != id {
			out = append(out, tx)
		}
	}
	return out
}

func (s *memStore) LatestShutdown(_ context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.shutdowns) == 0 {
		return time.Time{}, nil
	}
	return s.shutdowns[len(s.shutdowns)-1], nil
}

func (s *memStore) RecordShutdown(_ context.Context, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdowns = append(s.shutdowns, at)
	return nil
}

func (s *memStore) CatchupStats(_ context.Context, since time.Time) (*models.CatchupStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &models.CatchupStats{Since: since}
	seen := make(map[int64]bool)
	for _, a := range s.accounts {
		for _, h := range a.History {
			if !h.Catchup || h.EffectiveDate.Before(since) {
				continue
			}
			stats.Count++
			stats.TotalAmount += h.Amount
			if !seen[a.ID] {
				seen[a.ID] = true
				stats.Accounts++
			}
		}
	}
	return stats, nil
}

func (s *memStore) historyOf(accountID int64) []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[accountID]
	out := make([]models.Transaction, len(a.History))
	copy(out, a.History)
	return out
}

func (s *memStore) scheduledOf(accountID int64) []*models.ScheduledTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[accountID].Scheduled()
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu    sync.Mutex
	notes []models.Notification
}

func (r *recordingNotifier) Notify(n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recordingNotifier) all() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Notification, len(r.notes))
	copy(out, r.notes)
	return out
}

// fixedRate is a RateSource with a constant annual rate.
type fixedRate float64

func (f fixedRate) AnnualRate() float64 { return float64(f) }
