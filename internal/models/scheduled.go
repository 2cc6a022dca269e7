package models

import "time"

// Interval determines how often a scheduled transaction recurs.
type Interval string

const (
	IntervalWeekly   Interval = "weekly"
	IntervalBiWeekly Interval = "biweekly"
	IntervalMonthly  Interval = "monthly"
	IntervalYearly   Interval = "yearly"
	IntervalOnce     Interval = "once"
)

// Valid reports whether the interval is one of the supported values.
func (i Interval) Valid() bool {
	switch i {
	case IntervalWeekly, IntervalBiWeekly, IntervalMonthly, IntervalYearly, IntervalOnce:
		return true
	}
	return false
}

// Kind separates outgoing bills from incoming payments.
type Kind string

const (
	KindBill    Kind = "bill"
	KindPayment Kind = "payment"
)

// CategoryInterest marks a payment whose amount is derived from the current
// key rate at execution time instead of being fixed at creation.
const CategoryInterest = "interest"

// ScheduledTransaction is a recurring or one-time bill/payment definition.
// Amount is signed: negative for bills, positive for payments. NextExecution
// is nil only for once transactions that have no pending execution.
type ScheduledTransaction struct {
	ID            string     `json:"id"`
	AccountID     int64      `json:"account_id"`
	Kind          Kind       `json:"kind"`
	Amount        float64    `json:"amount"`
	Name          string     `json:"name"`
	Category      string     `json:"category"`
	Interval      Interval   `json:"interval"`
	CreationDate  time.Time  `json:"creation_date"`
	NextExecution *time.Time `json:"next_execution,omitempty"`
}
