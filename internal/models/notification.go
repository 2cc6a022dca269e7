package models

// Notification is the payload emitted to the session-routing layer whenever a
// transaction is applied to an account. Delivery is best-effort.
type Notification struct {
	AccountID     int64   `json:"account_id"`
	AccountHolder string  `json:"account_holder"`
	Email         string  `json:"-"`
	NewBalance    float64 `json:"new_balance"`
	Description   string  `json:"description"`
	Catchup       bool    `json:"catchup"`
}
