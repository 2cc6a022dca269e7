package models

import "time"

// CatchupResult is the outcome of one catch-up pass. It is returned instead
// of an error so callers can decide whether to retry a failed pass.
type CatchupResult struct {
	Success        bool   `json:"success"`
	TotalProcessed int    `json:"total_processed"`
	TotalMissed    int    `json:"total_missed"`
	Error          string `json:"error,omitempty"`
}

// CatchupStats aggregates catch-up history entries since a given moment.
type CatchupStats struct {
	Since       time.Time `json:"since"`
	Count       int       `json:"count"`
	TotalAmount float64   `json:"total_amount"`
	Accounts    int       `json:"accounts"`
}
