package recurrence

import (
	"slices"
	"time"
)

// Matches reports whether the civil day of candidate is an occurrence of a
// series anchored at anchor. Both dates are compared as civil dates in the
// anchor's location. The pattern's EndDate is a civil date of its own and is
// read in whatever location it carries. Zero times never match.
//
// Matches ignores Count and Exceptions: those depend on the series history
// and are applied by the Engine.
func Matches(candidate, anchor time.Time, p Pattern) bool {
	if candidate.IsZero() || anchor.IsZero() || p.Interval < 1 {
		return false
	}
	candidate = candidate.In(anchor.Location())

	if dayNumber(candidate) < dayNumber(anchor) {
		return false
	}
	if end, ok := p.endDay(); ok && dayNumber(candidate) > end {
		return false
	}

	interval := int64(p.Interval)
	switch p.Frequency {
	case Daily:
		return mod(daysBetween(anchor, candidate), interval) == 0

	case Weekly:
		if mod(weeksBetween(anchor, candidate), interval) != 0 {
			return false
		}
		if len(p.WeekDays) > 0 {
			return slices.Contains(p.WeekDays, candidate.Weekday())
		}
		return candidate.Weekday() == anchor.Weekday()

	case Monthly:
		if mod(monthsBetween(anchor, candidate), interval) != 0 {
			return false
		}
		return matchesMonthDay(candidate, anchor, p)

	case Yearly:
		if mod(yearsBetween(anchor, candidate), interval) != 0 {
			return false
		}
		return candidate.Month() == anchor.Month() && candidate.Day() == anchor.Day()
	}
	return false
}

func matchesMonthDay(candidate, anchor time.Time, p Pattern) bool {
	if day, ok := p.MonthDay.Get(); ok {
		return candidate.Day() == day
	}

	week, hasWeek := p.MonthWeek.Get()
	weekday, hasWeekday := p.MonthWeekDay.Get()
	if hasWeek && hasWeekday {
		if candidate.Weekday() != weekday {
			return false
		}
		if week == LastWeekOfMonth {
			return isLastWeekdayOfMonth(candidate)
		}
		return weekOfMonth(candidate) == week
	}

	return candidate.Day() == anchor.Day()
}
