package domain

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Day truncates t to its calendar day (UTC midnight). Time of day is ignored.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// DateRange is an inclusive range of whole calendar days: [Start, End].
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange normalizes both ends to calendar days.
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: Day(start), End: Day(end)}
}

func (r DateRange) Valid() bool { return !r.End.Before(r.Start) }

// Days is the number of calendar days covered, 0 for an invalid range.
func (r DateRange) Days() int {
	if !r.Valid() {
		return 0
	}
	return int(Day(r.End).Sub(Day(r.Start)).Hours()/24) + 1
}

func (r DateRange) Equal(o DateRange) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format(DateLayout), r.End.Format(DateLayout))
}

// Overlaps reports whether a and b share at least one calendar day.
// Touching on the same day counts; adjacency needs a one-day gap.
func Overlaps(a, b DateRange) bool {
	return !a.Start.After(b.End) && !b.Start.After(a.End)
}

// Contains reports whether every day of inner lies within outer.
func Contains(outer, inner DateRange) bool {
	return !inner.Start.Before(outer.Start) && !inner.End.After(outer.End)
}

// FragmentsOutside returns the parts of existing lying strictly outside
// candidate, ascending. Zero fragments means candidate covers existing.
func FragmentsOutside(existing, candidate DateRange) []DateRange {
	var out []DateRange
	if left := (DateRange{Start: existing.Start, End: candidate.Start.AddDate(0, 0, -1)}); left.Valid() {
		if left.End.After(existing.End) {
			left.End = existing.End
		}
		out = append(out, left)
	}
	if right := (DateRange{Start: candidate.End.AddDate(0, 0, 1), End: existing.End}); right.Valid() {
		if right.Start.Before(existing.Start) {
			right.Start = existing.Start
		}
		out = append(out, right)
	}
	return out
}
