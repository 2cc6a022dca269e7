package models

import "time"

// Account represents a student bank account: a balance, an ordered append-only
// transaction history and the scheduled bills/payments that drive it.
type Account struct {
	ID        int64                   `json:"id"`
	UserID    int64                   `json:"user_id"`
	Holder    string                  `json:"holder"`
	Email     string                  `json:"-"`
	Balance   float64                 `json:"balance"`
	Currency  string                  `json:"currency"`
	History   []Transaction           `json:"history,omitempty"`
	Bills     []*ScheduledTransaction `json:"bills,omitempty"`
	Payments  []*ScheduledTransaction `json:"payments,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Scheduled returns all scheduled transactions of the account, bills first.
func (a *Account) Scheduled() []*ScheduledTransaction {
	out := make([]*ScheduledTransaction, 0, len(a.Bills)+len(a.Payments))
	out = append(out, a.Bills...)
	out = append(out, a.Payments...)
	return out
}
