package types

import (
	"math/rand"
	"testing"
	"time"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

func closed(t *testing.T, start, end time.Time) Interval {
	t.Helper()
	iv, err := NewInterval(start, end)
	if err != nil {
		t.Fatalf("NewInterval: %v", err)
	}
	return iv
}

func TestNewIntervalRejectsReversedBounds(t *testing.T) {
	if _, err := NewInterval(at(11, 0), at(9, 0)); err == nil {
		t.Error("expected error for end before start")
	}
	// Zero-length is legal.
	if _, err := NewInterval(at(9, 0), at(9, 0)); err != nil {
		t.Errorf("zero-length interval should be valid: %v", err)
	}
}

func TestIntervalSeconds(t *testing.T) {
	tests := []struct {
		name string
		iv   Interval
		want int64
	}{
		{"two hours", closed(t, at(9, 0), at(11, 0)), 7200},
		{"half hour", closed(t, at(13, 0), at(13, 30)), 1800},
		{"zero length", closed(t, at(9, 0), at(9, 0)), 0},
		{"open reports zero", OpenInterval(at(9, 0)), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.iv.Seconds(); got != tt.want {
				t.Errorf("Seconds() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIntervalOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"disjoint", closed(t, at(9, 0), at(10, 0)), closed(t, at(11, 0), at(12, 0)), false},
		{"touching endpoints do not overlap", closed(t, at(9, 0), at(10, 0)), closed(t, at(10, 0), at(11, 0)), false},
		{"partial overlap", closed(t, at(9, 0), at(10, 30)), closed(t, at(10, 0), at(11, 0)), true},
		{"containment", closed(t, at(9, 0), at(12, 0)), closed(t, at(10, 0), at(11, 0)), true},
		{"identical", closed(t, at(9, 0), at(10, 0)), closed(t, at(9, 0), at(10, 0)), true},
		{"open conflicts with later interval", OpenInterval(at(10, 0)), closed(t, at(10, 15), at(10, 45)), true},
		{"open does not conflict with earlier", OpenInterval(at(10, 0)), closed(t, at(8, 0), at(9, 0)), false},
		{"open does not conflict with touching earlier", OpenInterval(at(10, 0)), closed(t, at(9, 0), at(10, 0)), false},
		{"two open intervals", OpenInterval(at(9, 0)), OpenInterval(at(15, 0)), true},
		{"empty overlaps nothing", closed(t, at(10, 0), at(10, 0)), closed(t, at(9, 0), at(11, 0)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
			// Overlap is symmetric.
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("reverse Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIntervalContains(t *testing.T) {
	iv := closed(t, at(9, 0), at(11, 0))

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"start is inside", at(9, 0), true},
		{"middle", at(10, 0), true},
		{"end is outside", at(11, 0), false},
		{"before", at(8, 59), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := iv.Contains(tt.t); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}

// Property check against a brute-force oracle: two closed intervals overlap
// iff some sampled minute lies strictly inside both.
func TestIntervalOverlapsMatchesOracle(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	oracle := func(a, b Interval) bool {
		for m := 0; m < 24*60; m++ {
			at := day.Add(time.Duration(m) * time.Minute)
			if a.Contains(at) && b.Contains(at) {
				return true
			}
		}
		return false
	}

	for i := 0; i < 500; i++ {
		s1 := rng.Intn(23 * 60)
		e1 := s1 + rng.Intn(3*60)
		s2 := rng.Intn(23 * 60)
		e2 := s2 + rng.Intn(3*60)

		a := closed(t, at(0, s1), at(0, e1))
		b := closed(t, at(0, s2), at(0, e2))

		if got, want := a.Overlaps(b), oracle(a, b); got != want {
			t.Fatalf("Overlaps([%d,%d), [%d,%d)) = %v, oracle says %v", s1, e1, s2, e2, got, want)
		}
	}
}

func TestIntervalClose(t *testing.T) {
	open := OpenInterval(at(10, 0))

	if _, err := open.Close(at(9, 0)); err == nil {
		t.Error("expected error closing before start")
	}

	iv, err := open.Close(at(10, 30))
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if iv.IsOpen() {
		t.Error("closed interval reports open")
	}
	if iv.Seconds() != 1800 {
		t.Errorf("Seconds = %d, want 1800", iv.Seconds())
	}
}
