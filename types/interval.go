package types

import (
	"fmt"
	"time"
)

// Interval is a half-open time range [Start, End). A nil End marks an open
// interval, a timer that is still running. Open intervals are treated as
// unbounded on the right for overlap purposes.
type Interval struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// NewInterval builds a closed interval. End must not precede Start. Both
// bounds are normalized to UTC here, once, so every later comparison of
// stored intervals (the SQL backends compare serialized timestamps) sees a
// single zone.
func NewInterval(start, end time.Time) (Interval, error) {
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return Interval{}, fmt.Errorf("interval: end %s before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Interval{Start: start, End: &end}, nil
}

// OpenInterval builds an open (running) interval beginning at start, in UTC.
func OpenInterval(start time.Time) Interval {
	return Interval{Start: start.UTC()}
}

// IsOpen reports whether the interval has no end yet.
func (iv Interval) IsOpen() bool { return iv.End == nil }

// Close returns a closed copy ending at end. Fails if end precedes Start.
func (iv Interval) Close(end time.Time) (Interval, error) {
	return NewInterval(iv.Start, end)
}

// Seconds returns the closed interval's length in whole seconds.
// Open intervals have no defined length and report zero.
func (iv Interval) Seconds() int64 {
	if iv.End == nil {
		return 0
	}
	return int64(iv.End.Sub(iv.Start) / time.Second)
}

// Contains reports whether t falls inside the half-open range.
func (iv Interval) Contains(t time.Time) bool {
	if t.Before(iv.Start) {
		return false
	}
	if iv.End == nil {
		return true
	}
	return t.Before(*iv.End)
}

// Overlaps reports whether two intervals share any instant. Half-open
// semantics: touching endpoints ([a,b) and [b,c)) do not overlap. An open
// interval conflicts with anything not strictly before its start.
func (iv Interval) Overlaps(other Interval) bool {
	if iv.IsEmpty() || other.IsEmpty() {
		return false
	}
	// iv entirely before other
	if iv.End != nil && !iv.End.After(other.Start) {
		return false
	}
	// other entirely before iv
	if other.End != nil && !other.End.After(iv.Start) {
		return false
	}
	return true
}

// Zero-length intervals ([t, t)) contain nothing and overlap nothing.
// IsEmpty reports that case.
func (iv Interval) IsEmpty() bool {
	return iv.End != nil && iv.End.Equal(iv.Start)
}
