package earnings

import (
	"time"

	"mechanicBack/internal/booking/models"
	"mechanicBack/internal/booking/timeutil"
)

// Policy decides what a completed job adds to the mechanic's earnings.
type Policy struct {
	// IncludeParts adds the parts cost to the labor payout.
	IncludeParts bool
}

// Increment returns the amount credited for a completed job.
func (p Policy) Increment(payoutCents, partsCents int64) int64 {
	amount := payoutCents
	if p.IncludeParts && partsCents > 0 {
		amount += partsCents
	}
	if amount < 0 {
		return 0
	}
	return amount
}

// Roll clears the today and month buckets when now is past the last update's day or month.
// The week bucket is only cleared by a cash-out.
func Roll(e models.Earnings, now time.Time, loc *time.Location) models.Earnings {
	if e.UpdatedAt.IsZero() {
		return e
	}
	if !timeutil.SameDay(e.UpdatedAt, now, loc) {
		e.TodayCents = 0
	}
	if !timeutil.SameMonth(e.UpdatedAt, now, loc) {
		e.MonthCents = 0
	}
	return e
}

// Add credits amount to every bucket.
func Add(e models.Earnings, amountCents int64, now time.Time, loc *time.Location) models.Earnings {
	e = Roll(e, now, loc)
	e.TodayCents += amountCents
	e.WeekCents += amountCents
	e.MonthCents += amountCents
	e.UpdatedAt = now
	return e
}

// CashOut empties the week bucket and returns the paid out amount.
func CashOut(e models.Earnings, now time.Time, loc *time.Location) (models.Earnings, int64) {
	e = Roll(e, now, loc)
	paid := e.WeekCents
	e.WeekCents = 0
	e.UpdatedAt = now
	return e, paid
}
