// Package schedule computes next-execution dates for recurring transactions.
// All functions are pure: the current time is an explicit argument.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/finclass/bank-sim/internal/models"
)

// ErrOnceNotRecurring is returned when a next date is requested for a
// one-time transaction.
var ErrOnceNotRecurring = errors.New("once transactions have no next execution date")

// NextDue returns the next execution date for a recurring transaction,
// strictly after now.
//
// reference is the previous next-execution date (the creation date for a
// transaction that has never fired); creation anchors the bi-weekly, monthly
// and yearly cadences so a delayed replay does not drift the cycle.
func NextDue(now, reference, creation time.Time, interval models.Interval) (time.Time, error) {
	switch interval {
	case models.IntervalWeekly:
		return nextWeekly(now, reference), nil
	case models.IntervalBiWeekly:
		return nextBiWeekly(now, creation), nil
	case models.IntervalMonthly:
		return nextMonthly(now, creation), nil
	case models.IntervalYearly:
		return nextYearly(now, creation), nil
	case models.IntervalOnce:
		return time.Time{}, ErrOnceNotRecurring
	default:
		return time.Time{}, fmt.Errorf("unknown interval %q", interval)
	}
}

// nextWeekly returns the next occurrence of reference's weekday strictly
// after now, keeping reference's clock time. A due moment that has already
// elapsed today rolls a full week forward.
func nextWeekly(now, reference time.Time) time.Time {
	h, min, sec := reference.Clock()
	y, m, d := now.Date()
	candidate := time.Date(y, m, d, h, min, sec, 0, reference.Location())

	days := (int(reference.Weekday()) - int(candidate.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, days)
	for !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// nextBiWeekly advances whole 14-day cycles from the creation date until the
// result is in the future. Anchoring to creation keeps the cadence stable
// across missed or delayed executions.
func nextBiWeekly(now, creation time.Time) time.Time {
	next := creation.AddDate(0, 0, 14)
	for !next.After(now) {
		next = next.AddDate(0, 0, 14)
	}
	return next
}

// nextMonthly returns creation's day-of-month rolled forward by whole months
// until strictly after now. A day that does not exist in the target month is
// clamped to that month's last day (Jan 31 -> Feb 28/29).
func nextMonthly(now, creation time.Time) time.Time {
	h, min, sec := creation.Clock()
	for i := 1; ; i++ {
		candidate := clampedDate(creation.Year(), creation.Month()+time.Month(i), creation.Day(), h, min, sec, creation.Location())
		if candidate.After(now) {
			return candidate
		}
	}
}

// nextYearly returns creation's month and day rolled forward by whole years
// until strictly after now, with Feb 29 clamped to Feb 28 in common years.
func nextYearly(now, creation time.Time) time.Time {
	h, min, sec := creation.Clock()
	for i := 1; ; i++ {
		candidate := clampedDate(creation.Year()+i, creation.Month(), creation.Day(), h, min, sec, creation.Location())
		if candidate.After(now) {
			return candidate
		}
	}
}

// clampedDate builds a date with the day clamped to the target month's
// length instead of letting time.Date normalize it into the next month.
func clampedDate(year int, month time.Month, day, hour, min, sec int, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, hour, min, sec, 0, loc)
	last := daysIn(first.Year(), first.Month(), loc)
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, 0, loc)
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
