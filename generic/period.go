package generic

import "time"

// =============================================================================
// PERIOD - Half-open accrual window
// =============================================================================

// Period is the window [Start, End). Annual-leave consumption is always
// measured against one Period.
//
// Examples:
//   - Anniversary year for a 2019-03-15 hire: [2024-03-15, 2025-03-15)
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls in [Start, End).
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

func (p Period) Duration() time.Duration { return p.End.Sub(p.Start) }

func (p Period) String() string {
	return "[" + p.Start.Format(DateLayout) + ", " + p.End.Format(DateLayout) + ")"
}

const DateLayout = "2006-01-02"

// =============================================================================
// ANNIVERSARY ARITHMETIC
// =============================================================================

// AddYears returns the n-th anniversary of anchor. An anchor on Feb 29 lands
// on Feb 28 in non-leap years. Anniversaries are always computed from the
// anchor, never chained, so the day of month does not drift.
func AddYears(anchor time.Time, n int) time.Time {
	y, m, d := anchor.Date()
	y += n
	if last := daysIn(y, m); d > last {
		d = last
	}
	return time.Date(y, m, d, anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), anchor.Location())
}

// AddMonths is AddYears at month granularity, with the same end-of-month clamp.
func AddMonths(anchor time.Time, n int) time.Time {
	y, m, d := anchor.Date()
	total := int(m) - 1 + n
	q, r := total/12, total%12
	if r < 0 {
		q--
		r += 12
	}
	y += q
	m = time.Month(r + 1)
	if last := daysIn(y, m); d > last {
		d = last
	}
	return time.Date(y, m, d, anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), anchor.Location())
}

// AnniversaryPeriod returns the anniversary year of anchor that contains asOf.
// The search advances one year at a time from the anchor until End > asOf,
// so it is O(years elapsed). An asOf before the anchor yields the first year.
func AnniversaryPeriod(anchor, asOf time.Time) Period {
	n := 0
	end := AddYears(anchor, 1)
	for !end.After(asOf) {
		n++
		end = AddYears(anchor, n+1)
	}
	return Period{Start: AddYears(anchor, n), End: end}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
