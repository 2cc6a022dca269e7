package scheduler

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/finclass/bank-sim/internal/models"
)

// Applier executes a due scheduled transaction against its account: it
// appends a history entry, recomputes the balance and emits a notification.
type Applier struct {
	store    Store
	notifier Notifier
	rates    RateSource
	log      *logrus.Logger
}

// NewApplier initializes a new applier. notifier and rates may be nil.
func NewApplier(store Store, notifier Notifier, rates RateSource, log *logrus.Logger) *Applier {
	return &Applier{store: store, notifier: notifier, rates: rates, log: log}
}

// Apply records one execution of tx on account with the given effective date.
// The history append and the balance update are a single atomic write in the
// store; the notification is best-effort and never rolls anything back.
func (a *Applier) Apply(ctx context.Context, account *models.Account, tx *models.ScheduledTransaction, effectiveDate time.Time, catchup bool) (float64, error) {
	amount := a.amountFor(account, tx)

	entry := &models.Transaction{
		AccountID:     account.ID,
		Amount:        amount,
		Name:          tx.Name,
		Category:      tx.Category,
		EffectiveDate: effectiveDate,
		Catchup:       catchup,
	}

	balance, err := a.store.ApplyTransaction(ctx, account.ID, entry)
	if err != nil {
		return 0, fmt.Errorf("failed to apply %s %q on account %d: %w", tx.Kind, tx.Name, account.ID, err)
	}
	account.Balance = balance

	a.log.WithFields(logrus.Fields{
		"account":   account.ID,
		"name":      tx.Name,
		"amount":    amount,
		"effective": effectiveDate.Format("2006-01-02"),
		"catchup":   catchup,
	}).Info("Transaction applied")

	if a.notifier != nil {
		a.notifier.Notify(models.Notification{
			AccountID:     account.ID,
			AccountHolder: account.Holder,
			Email:         account.Email,
			NewBalance:    balance,
			Description:   describe(tx.Name, amount, account.Currency, effectiveDate, catchup),
			Catchup:       catchup,
		})
	}

	return balance, nil
}

// amountFor resolves the signed amount of one execution. Interest payments
// carry no fixed amount: one month of the current annual key rate is accrued
// on the balance at execution time.
func (a *Applier) amountFor(account *models.Account, tx *models.ScheduledTransaction) float64 {
	if tx.Category != models.CategoryInterest || tx.Amount != 0 || a.rates == nil {
		return tx.Amount
	}
	monthly := account.Balance * a.rates.AnnualRate() / 100 / 12
	return math.Round(monthly*100) / 100
}

func describe(name string, amount float64, currency string, effectiveDate time.Time, catchup bool) string {
	desc := fmt.Sprintf("%s: %+.2f %s", name, amount, currency)
	if catchup {
		desc += fmt.Sprintf(" (caught up for %s)", effectiveDate.Format("2006-01-02"))
	}
	return desc
}
