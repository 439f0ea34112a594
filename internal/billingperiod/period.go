package billingperiod

import "time"

// Period is a half-open billing interval [Start, End): the first instant of a
// calendar month and the first instant of the next month, in one time zone.
type Period struct {
	Start time.Time
	End   time.Time
}

// Resolve buckets a reference instant into its calendar-month period in loc.
// Any two instants within the same calendar month resolve to the same period.
func Resolve(ref time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	local := ref.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return Period{
		Start: start,
		End:   start.AddDate(0, 1, 0),
	}
}

// Contains reports whether an instant falls inside the period.
func (p Period) Contains(ref time.Time) bool {
	return !ref.Before(p.Start) && ref.Before(p.End)
}

// Key is the canonical yyyymm label for the period, used in invoice numbers
// and event dedupe keys.
func (p Period) Key() string {
	return p.Start.Format("200601")
}
