package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"
)

const exdateLayout = "20060102"

var rruleWeekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// RRule renders the pattern as an RFC 5545 RRULE value (without the
// "RRULE:" prefix). Exceptions are not part of an RRULE; see
// FormatExceptionDates.
func (p Pattern) RRule() (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	opt := rrule.ROption{Interval: p.Interval}
	switch p.Frequency {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
		for _, day := range p.WeekDays {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[day])
		}
	case Monthly:
		opt.Freq = rrule.MONTHLY
		if day, ok := p.MonthDay.Get(); ok {
			opt.Bymonthday = []int{day}
		} else if week, ok := p.MonthWeek.Get(); ok {
			n := week
			if week == LastWeekOfMonth {
				n = -1
			}
			opt.Byweekday = []rrule.Weekday{rruleWeekdays[p.MonthWeekDay.MustGet()].Nth(n)}
		}
	case Yearly:
		opt.Freq = rrule.YEARLY
	}

	if end, ok := p.EndDate.Get(); ok && !end.IsZero() {
		y, m, d := end.Date()
		opt.Until = time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
	}
	if count, ok := p.Count.Get(); ok {
		opt.Count = count
	}

	return opt.RRuleString(), nil
}

// ParseRRule reads an RRULE value back into a Pattern. Only the shapes
// RRule produces are accepted; anything else (BYSETPOS, BYYEARDAY, several
// BY* parts in one tier, ...) is rejected.
func ParseRRule(value string) (Pattern, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "RRULE:")
	opt, err := rrule.StrToROption(value)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: parse rrule %q: %v", ErrInvalidPattern, value, err)
	}

	if len(opt.Bysetpos) > 0 || len(opt.Byyearday) > 0 || len(opt.Byweekno) > 0 ||
		len(opt.Bymonth) > 0 || len(opt.Byhour) > 0 || len(opt.Byminute) > 0 ||
		len(opt.Bysecond) > 0 || len(opt.Byeaster) > 0 {
		return Pattern{}, fmt.Errorf("%w: unsupported rule part in %q", ErrInvalidPattern, value)
	}

	p := Pattern{Interval: opt.Interval}
	if p.Interval < 1 {
		p.Interval = 1
	}

	switch opt.Freq {
	case rrule.DAILY:
		p.Frequency = Daily
		if len(opt.Byweekday) > 0 || len(opt.Bymonthday) > 0 {
			return Pattern{}, fmt.Errorf("%w: daily rules take no BY parts", ErrInvalidPattern)
		}
	case rrule.WEEKLY:
		p.Frequency = Weekly
		if len(opt.Bymonthday) > 0 {
			return Pattern{}, fmt.Errorf("%w: weekly rules take only BYDAY", ErrInvalidPattern)
		}
		for i := range opt.Byweekday {
			wd := opt.Byweekday[i]
			if wd.N() != 0 {
				return Pattern{}, fmt.Errorf("%w: weekly BYDAY cannot carry an ordinal", ErrInvalidPattern)
			}
			p.WeekDays = append(p.WeekDays, fromRRuleWeekday(wd))
		}
	case rrule.MONTHLY:
		p.Frequency = Monthly
		switch {
		case len(opt.Bymonthday) == 1 && len(opt.Byweekday) == 0:
			p.MonthDay = mo.Some(opt.Bymonthday[0])
		case len(opt.Byweekday) == 1 && len(opt.Bymonthday) == 0:
			wd := opt.Byweekday[0]
			n := wd.N()
			switch {
			case n >= 1 && n <= 4:
				p.MonthWeek = mo.Some(n)
			case n == -1:
				p.MonthWeek = mo.Some(LastWeekOfMonth)
			default:
				return Pattern{}, fmt.Errorf("%w: monthly BYDAY needs an ordinal of 1..4 or -1", ErrInvalidPattern)
			}
			p.MonthWeekDay = mo.Some(fromRRuleWeekday(wd))
		case len(opt.Byweekday) == 0 && len(opt.Bymonthday) == 0:
		default:
			return Pattern{}, fmt.Errorf("%w: monthly rules take one BYMONTHDAY or one BYDAY", ErrInvalidPattern)
		}
	case rrule.YEARLY:
		p.Frequency = Yearly
		if len(opt.Byweekday) > 0 || len(opt.Bymonthday) > 0 {
			return Pattern{}, fmt.Errorf("%w: yearly rules take no BY parts", ErrInvalidPattern)
		}
	default:
		return Pattern{}, fmt.Errorf("%w: unsupported frequency %v", ErrInvalidPattern, opt.Freq)
	}

	if !opt.Until.IsZero() {
		y, m, d := opt.Until.UTC().Date()
		p.EndDate = mo.Some(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
	}
	if opt.Count > 0 {
		p.Count = mo.Some(opt.Count)
	}

	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

func fromRRuleWeekday(wd rrule.Weekday) time.Weekday {
	// rrule-go numbers Monday as 0
	return time.Weekday((wd.Day() + 1) % 7)
}

// FormatExceptionDates renders detached dates as a date-only EXDATE value
// ("20250101,20250108").
func FormatExceptionDates(dates []time.Time) string {
	parts := make([]string, 0, len(dates))
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		parts = append(parts, d.Format(exdateLayout))
	}
	return strings.Join(parts, ",")
}

// ParseExceptionDates parses a date-only or date-time EXDATE value into
// civil dates at midnight UTC. Unparseable entries are skipped.
func ParseExceptionDates(value string) []time.Time {
	if strings.TrimSpace(value) == "" {
		return nil
	}

	var exdates []time.Time
	for _, exdateStr := range strings.Split(value, ",") {
		exdateStr = strings.TrimSpace(exdateStr)
		if exdateStr == "" {
			continue
		}

		exdate, err := time.Parse(exdateLayout, exdateStr)
		if err != nil {
			// date-time form, keep its civil date
			exdate, err = time.Parse("20060102T150405Z", exdateStr)
			if err != nil {
				continue
			}
		}
		exdates = append(exdates, time.Date(exdate.Year(), exdate.Month(), exdate.Day(), 0, 0, 0, 0, time.UTC))
	}
	return exdates
}
