package scheduler

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/finclass/bank-sim/internal/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testAccount(id int64, scheduled ...*models.ScheduledTransaction) *models.Account {
	a := &models.Account{ID: id, UserID: id, Holder: "student", Currency: "RUB"}
	for _, tx := range scheduled {
		tx.AccountID = id
		if tx.Kind == models.KindBill {
			a.Bills = append(a.Bills, tx)
		} else {
			a.Payments = append(a.Payments, tx)
		}
	}
	return a
}

func TestApplier_AppendsHistoryAndRecomputesBalance(t *testing.T) {
	tx := &models.ScheduledTransaction{ID: "rent", Kind: models.KindBill, Amount: -500, Name: "Rent", Category: "housing", Interval: models.IntervalMonthly}
	account := testAccount(1, tx)
	store := newMemStore(account)
	applier := NewApplier(store, nil, nil, testLogger())

	ctx := context.Background()
	due := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)

	balance, err := applier.Apply(ctx, account, tx, due, false)
	require.NoError(t, err)
	require.Equal(t, -500.0, balance)

	balance, err = applier.Apply(ctx, account, tx, due.AddDate(0, 1, 0), false)
	require.NoError(t, err)
	require.Equal(t, -1000.0, balance)

	// The stored balance is always reproducible from history.
	history := store.historyOf(1)
	require.Len(t, history, 2)
	sum := 0.0
	for _, h := range history {
		sum += h.Amount
	}
	require.Equal(t, sum, balance)
	require.Equal(t, due, history[0].EffectiveDate)
	require.False(t, history[0].Catchup)
}

func TestApplier_NotifiesWithNewBalance(t *testing.T) {
	tx := &models.ScheduledTransaction{ID: "salary", Kind: models.KindPayment, Amount: 1200, Name: "Salary", Category: "income", Interval: models.IntervalMonthly}
	account := testAccount(2, tx)
	store := newMemStore(account)
	notifier := &recordingNotifier{}
	applier := NewApplier(store, notifier, nil, testLogger())

	due := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	_, err := applier.Apply(context.Background(), account, tx, due, true)
	require.NoError(t, err)

	notes := notifier.all()
	require.Len(t, notes, 1)
	require.Equal(t, "student", notes[0].AccountHolder)
	require.Equal(t, 1200.0, notes[0].NewBalance)
	require.True(t, notes[0].Catchup)
	require.Contains(t, notes[0].Description, "Salary")
	require.Contains(t, notes[0].Description, "2026-05-01")
}

func TestApplier_InterestAmountFromCurrentRate(t *testing.T) {
	salary := &models.ScheduledTransaction{ID: "salary", Kind: models.KindPayment, Amount: 1200, Name: "Salary", Category: "income", Interval: models.IntervalMonthly}
	interest := &models.ScheduledTransaction{ID: "int", Kind: models.KindPayment, Amount: 0, Name: "Savings interest", Category: models.CategoryInterest, Interval: models.IntervalMonthly}
	account := testAccount(3, salary, interest)
	store := newMemStore(account)
	applier := NewApplier(store, nil, fixedRate(10), testLogger())

	ctx := context.Background()
	now := time.Now()
	_, err := applier.Apply(ctx, account, salary, now, false)
	require.NoError(t, err)

	// One month of 10% p.a. on a 1200 balance is exactly 10.
	balance, err := applier.Apply(ctx, account, interest, now, false)
	require.NoError(t, err)
	require.Equal(t, 1210.0, balance)
}

func TestApplier_StoreFailureSkipsNotification(t *testing.T) {
	tx := &models.ScheduledTransaction{ID: "rent", Kind: models.KindBill, Amount: -500, Name: "Rent", Category: "housing", Interval: models.IntervalMonthly}
	account := testAccount(4, tx)
	store := newMemStore(account)
	store.failApplyFor = map[string]bool{"Rent": true}
	notifier := &recordingNotifier{}
	applier := NewApplier(store, notifier, nil, testLogger())

	_, err := applier.Apply(context.Background(), account, tx, time.Now(), false)
	require.Error(t, err)
	require.Empty(t, notifier.all())
	require.Empty(t, store.historyOf(4))
}
