package models

import "time"

// Transaction is an immutable history entry produced when a scheduled
// transaction executes. EffectiveDate is the moment the transaction is
// considered to have occurred: for an ordinary execution this is the apply
// time, for a catch-up replay it is the original missed due date.
type Transaction struct {
	ID            int64     `json:"id"`
	AccountID     int64     `json:"account_id"`
	Amount        float64   `json:"amount"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	EffectiveDate time.Time `json:"effective_date"`
	Catchup       bool      `json:"catchup"`
	CreatedAt     time.Time `json:"created_at"`
}
