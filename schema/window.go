package schema

import "time"

// Window is an analysis window covering the last N months, where a month is
// a fixed 30 days. Facts qualify when both the commit_month partition and
// the exact timestamp are inside the window; the month check lets a columnar
// engine prune partitions before the row-level filter.
type Window struct {
	Months     int
	Since      time.Time
	SinceMonth string // YYYY-MM
}

// NewWindow builds a window ending at now (UTC).
func NewWindow(now time.Time, months int) Window {
	since := now.UTC().Add(-time.Duration(months) * 30 * 24 * time.Hour)
	return Window{
		Months:     months,
		Since:      since,
		SinceMonth: since.Format("2006-01"),
	}
}

// Contains reports whether a fact with the given partition month and
// timestamp falls inside the window.
func (w Window) Contains(commitMonth string, committedAt time.Time) bool {
	return commitMonth >= w.SinceMonth && !committedAt.Before(w.Since)
}

// MinCommits is the saturation floor for the window: MonthlyCommitFloor
// commits per month, at least 1.
func (w Window) MinCommits() int64 {
	n := int64(w.Months) * MonthlyCommitFloor
	if n < 1 {
		return 1
	}
	return n
}
