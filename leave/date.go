package leave

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day (this engine never reasons below day granularity)
// =============================================================================

// Date is a calendar day, normalized to midnight UTC. Leave ranges are
// inclusive on both ends and carry no time component; half-day semantics
// live on the request as a flag, not on the date.
type Date struct {
	t time.Time
}

// Constructors

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a date in ISO form (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Comparison

func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.t.After(other.t) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.t.Before(other.t) }

// Arithmetic

func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// DaysInclusive counts calendar days in [d, end], both ends included.
// A single-day range counts as 1.
func (d Date) DaysInclusive(end Date) int {
	return int(end.t.Sub(d.t).Hours()/24) + 1
}

// Properties

func (d Date) IsZero() bool    { return d.t.IsZero() }
func (d Date) Time() time.Time { return d.t }
func (d Date) String() string  { return d.t.Format("2006-01-02") }

// =============================================================================
// CLOCK - Injected time source
// =============================================================================

// Clock supplies "now" to the engine. It is injected rather than read from
// the environment so date-boundary rules (no backdating, cancellation
// window) are testable against a fixed day.
type Clock interface {
	Now() time.Time
	Today() Date
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
func (SystemClock) Today() Date    { return DateOf(time.Now().UTC()) }

// FixedClock always reports the same instant. For tests and demos.
type FixedClock struct {
	Instant time.Time
}

func (c FixedClock) Now() time.Time { return c.Instant }
func (c FixedClock) Today() Date    { return DateOf(c.Instant) }
