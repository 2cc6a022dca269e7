package models

import "time"

// ShutdownRecord marks a graceful process termination. Records form an
// append-only log; the catch-up pass reads the most recent one to find the
// start of the silent window.
type ShutdownRecord struct {
	ID         int64     `json:"id"`
	RecordedAt time.Time `json:"recorded_at"`
}
