package clock

import "time"

// Clock supplies the current time in the academy's billing time zone.
// Billing period boundaries depend on the zone, so every component that
// buckets by period must read time through this interface.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock builds a SystemClock for the named IANA zone.
func NewSystemClock(timezone string) (SystemClock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return SystemClock{}, err
	}
	return SystemClock{loc: loc}, nil
}

func (c SystemClock) Now() time.Time {
	return time.Now().In(c.Location())
}

func (c SystemClock) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Fixed is a Clock pinned to a single instant, for tests.
type Fixed struct {
	Instant time.Time
}

func (c Fixed) Now() time.Time { return c.Instant }

func (c Fixed) Location() *time.Location { return c.Instant.Location() }
