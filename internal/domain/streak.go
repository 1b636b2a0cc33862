package domain

import "time"

// Streak holds login streak counters.
type Streak struct {
	Current int `json:"current"`
	Longest int `json:"longest"`
}

// CalculateStreak advances streak counters for a login happening now,
// comparing calendar days in local time rather than 24h windows.
//
// A consecutive-day login bumps Longest unconditionally, even when
// Current has not caught up to it. That is the historical, test-pinned
// behavior of this product and is kept as is.
func CalculateStreak(lastLogin *time.Time, current, longest int) Streak {
	if lastLogin == nil {
		return Streak{Current: 1, Longest: 1}
	}
	days := calendarDaysBetween(*lastLogin, time.Now())
	switch {
	case days == 0:
		return Streak{Current: current, Longest: longest}
	case days == 1:
		return Streak{Current: current + 1, Longest: longest + 1}
	default:
		return Streak{Current: 1, Longest: longest}
	}
}

// calendarDaysBetween counts whole calendar-day boundaries crossed
// between a and b in local time. The date triples are re-anchored in
// UTC so DST transitions (23h or 25h local days) cannot skew the count.
func calendarDaysBetween(a, b time.Time) int {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	start := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	end := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start) / (24 * time.Hour))
}
