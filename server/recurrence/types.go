package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/mo"
)

// Frequency is the unit a recurrence pattern steps in.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

// Valid reports whether f is one of the supported frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// LastWeekOfMonth is the MonthWeek value meaning "the last such weekday",
// not literally the fifth one.
const LastWeekOfMonth = 5

// Pattern describes how a series master repeats. Exactly one shape per
// frequency tier is supported:
//   - Daily: every Interval days
//   - Weekly: every Interval weeks on WeekDays (or the anchor's weekday)
//   - Monthly: every Interval months on MonthDay, on the MonthWeek-th
//     MonthWeekDay, or on the anchor's day of month
//   - Yearly: every Interval years on the anchor's month and day
type Pattern struct {
	Frequency Frequency `json:"frequency"`
	Interval  int       `json:"interval"`

	WeekDays []time.Weekday `json:"weekDays,omitempty"`

	MonthDay     mo.Option[int]          `json:"monthDay"`
	MonthWeek    mo.Option[int]          `json:"monthWeek"`
	MonthWeekDay mo.Option[time.Weekday] `json:"monthWeekDay"`

	// EndDate is a civil date, inclusive of its whole day. Only its year,
	// month and day count, taken in EndDate's own location; it is never
	// moved into the anchor's location. RRULE UNTIL values parse to UTC
	// midnight of the UNTIL date.
	EndDate mo.Option[time.Time] `json:"endDate"`
	Count   mo.Option[int]       `json:"count"`

	// Exceptions holds the civil dates of detached occurrences.
	Exceptions []time.Time `json:"exceptions,omitempty"`
}

// TimeOccurrence represents a single occurrence of a series in time
type TimeOccurrence struct {
	Start time.Time // anchor time-of-day on Day
	End   time.Time // Start plus the series duration
	Day   time.Time // civil date of the occurrence, midnight in the anchor's location
}

var (
	// ErrInvalidPattern is wrapped by every Validate failure
	ErrInvalidPattern = errors.New("invalid recurrence pattern")
)

// Validate checks the structural invariants of the pattern.
func (p Pattern) Validate() error {
	if !p.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidPattern, p.Frequency)
	}
	if p.Interval < 1 {
		return fmt.Errorf("%w: interval must be >= 1, got %d", ErrInvalidPattern, p.Interval)
	}
	if day, ok := p.MonthDay.Get(); ok && (day < 1 || day > 31) {
		return fmt.Errorf("%w: month day %d out of range", ErrInvalidPattern, day)
	}
	if week, ok := p.MonthWeek.Get(); ok {
		if week < 1 || week > LastWeekOfMonth {
			return fmt.Errorf("%w: month week %d out of range", ErrInvalidPattern, week)
		}
		if p.MonthWeekDay.IsAbsent() {
			return fmt.Errorf("%w: month week requires a month weekday", ErrInvalidPattern)
		}
	}
	if p.MonthDay.IsPresent() && p.MonthWeek.IsPresent() {
		return fmt.Errorf("%w: month day and month week are mutually exclusive", ErrInvalidPattern)
	}
	if count, ok := p.Count.Get(); ok && count < 1 {
		return fmt.Errorf("%w: count must be >= 1, got %d", ErrInvalidPattern, count)
	}
	return nil
}

// Normalize returns a copy with lenient input fixed up: a non-positive
// interval becomes 1, weekdays and exceptions are sorted and de-duplicated.
func (p Pattern) Normalize() Pattern {
	out := p.Clone()
	if out.Interval < 1 {
		out.Interval = 1
	}
	out.Frequency = Frequency(strings.ToLower(strings.TrimSpace(string(out.Frequency))))

	if len(out.WeekDays) > 0 {
		seen := make(map[time.Weekday]struct{}, len(out.WeekDays))
		days := out.WeekDays[:0]
		for _, day := range out.WeekDays {
			if _, ok := seen[day]; ok {
				continue
			}
			seen[day] = struct{}{}
			days = append(days, day)
		}
		sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
		out.WeekDays = days
	}

	if len(out.Exceptions) > 0 {
		seen := make(map[string]struct{}, len(out.Exceptions))
		dates := make([]time.Time, 0, len(out.Exceptions))
		for _, ex := range out.Exceptions {
			if ex.IsZero() {
				continue
			}
			key := DateKey(ex)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			dates = append(dates, civilDate(ex))
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		out.Exceptions = dates
	}
	return out
}

// Clone returns a deep copy of the pattern.
func (p Pattern) Clone() Pattern {
	out := p
	if p.WeekDays != nil {
		out.WeekDays = append([]time.Weekday(nil), p.WeekDays...)
	}
	if p.Exceptions != nil {
		out.Exceptions = append([]time.Time(nil), p.Exceptions...)
	}
	return out
}

// IsException reports whether the civil date of day has been detached.
func (p Pattern) IsException(day time.Time) bool {
	key := DateKey(day)
	for _, ex := range p.Exceptions {
		if DateKey(ex) == key {
			return true
		}
	}
	return false
}

// WithException returns a copy with day's civil date appended to the
// exception set. Adding an existing date is a no-op.
func (p Pattern) WithException(day time.Time) Pattern {
	out := p.Clone()
	if day.IsZero() || p.IsException(day) {
		return out
	}
	out.Exceptions = append(out.Exceptions, civilDate(day))
	sort.Slice(out.Exceptions, func(i, j int) bool { return out.Exceptions[i].Before(out.Exceptions[j]) })
	return out
}

var weekdayCodes = [...]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// WeekdayCode returns the two-letter code of d (MO, TU, ...).
func WeekdayCode(d time.Weekday) string {
	if d < time.Sunday || d > time.Saturday {
		return ""
	}
	return weekdayCodes[d]
}

// ParseWeekday accepts two-letter codes (MO) as well as English names
// (monday, mon), case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	for i, code := range weekdayCodes {
		if v == code {
			return time.Weekday(i), nil
		}
		name := strings.ToUpper(time.Weekday(i).String())
		if v == name || (len(v) == 3 && strings.HasPrefix(name, v)) {
			return time.Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
