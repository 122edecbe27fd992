package clinic

import (
	"fmt"
	"time"
)

// Clock supplies clinic-local time. Every timestamp comparison in the
// system (residency timeout, day rollover, history windowing) goes through
// this rather than machine-local time, because the clinic operates in one
// fixed timezone regardless of where a client runs.
type Clock interface {
	Now() time.Time
}

type clinicClock struct {
	loc *time.Location
}

// NewClock builds a Clock pinned to the named IANA timezone.
func NewClock(timezone string) (Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load clinic timezone %q: %w", timezone, err)
	}
	return &clinicClock{loc: loc}, nil
}

func (c *clinicClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// DayStart returns midnight of t's calendar day in t's own location.
func DayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
