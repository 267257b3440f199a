package recurrence

import "time"

const isoDate = "2006-01-02"

// DateKey formats the civil date of t (in t's own location) as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format(isoDate)
}

// civilDate truncates t to midnight of its civil day, keeping its location.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// dayNumber counts days since the Unix epoch for the civil date of t.
// UTC midnights are exactly 24h apart, so DST never leaks into the count.
func dayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// endDay is the day number of the pattern's EndDate, if one is set
func (p Pattern) endDay() (int64, bool) {
	end, ok := p.EndDate.Get()
	if !ok || end.IsZero() {
		return 0, false
	}
	return dayNumber(end), true
}

func daysBetween(from, to time.Time) int64 {
	return dayNumber(to) - dayNumber(from)
}

// weekNumber is the index of the Monday-started week containing t.
// 1970-01-01 was a Thursday, so day 0 sits three days into week 0.
func weekNumber(t time.Time) int64 {
	return floorDiv(dayNumber(t)+3, 7)
}

func weeksBetween(from, to time.Time) int64 {
	return weekNumber(to) - weekNumber(from)
}

func monthsBetween(from, to time.Time) int64 {
	return 12*int64(to.Year()-from.Year()) + int64(to.Month()-from.Month())
}

func yearsBetween(from, to time.Time) int64 {
	return int64(to.Year() - from.Year())
}

func daysIn(year int, month time.Month) int {
	// day 0 of the following month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// weekOfMonth returns which occurrence of its weekday t is within its
// month, counted from the first (1..5).
func weekOfMonth(t time.Time) int {
	return (t.Day()-1)/7 + 1
}

// isLastWeekdayOfMonth reports whether adding a week to t leaves its month.
func isLastWeekdayOfMonth(t time.Time) bool {
	return t.Day()+7 > daysIn(t.Year(), t.Month())
}

// atTimeOfDay places the civil date of day at the wall-clock time of ref,
// in ref's location.
func atTimeOfDay(day, ref time.Time) time.Time {
	y, m, d := day.Date()
	h, mi, s := ref.Clock()
	return time.Date(y, m, d, h, mi, s, ref.Nanosecond(), ref.Location())
}

func mod(a, n int64) int64 {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}

func floorDiv(a, n int64) int64 {
	q := a / n
	if (a%n != 0) && ((a < 0) != (n < 0)) {
		q--
	}
	return q
}

// dayFromNumber is the inverse of dayNumber: midnight of that civil date
// in loc.
func dayFromNumber(n int64, loc *time.Location) time.Time {
	y, m, d := time.Unix(n*86400, 0).UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
