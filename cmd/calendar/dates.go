package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// dateParser reads dates given on the command line: YYYY-MM-DD, a date
// with a clock time, RFC 3339 or English phrases such as "next monday".
type dateParser struct {
	loc  *time.Location
	when *when.Parser
}

var clockLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

func newDateParser(loc *time.Location) *dateParser {
	if loc == nil {
		loc = time.Local
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &dateParser{loc: loc, when: w}
}

// parse returns the time s names relative to now. wholeDay is set when s
// names a day rather than an instant.
func (p *dateParser) parse(s string, now time.Time) (t time.Time, wholeDay bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, fmt.Errorf("empty date")
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, p.loc); err == nil {
		return t, true, nil
	}
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return t, false, nil
		}
	}

	result, err := p.when.Parse(s, now.In(p.loc))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse date %q: %w", s, err)
	}
	if result == nil {
		return time.Time{}, false, fmt.Errorf("unrecognized date %q", s)
	}
	return result.Time.In(p.loc), false, nil
}

// day returns midnight of the civil day containing t
func (p *dateParser) day(t time.Time) time.Time {
	y, m, d := t.In(p.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.loc)
}

// bounds turns the optional FROM and TO arguments into a half-open range.
// FROM defaults to today and TO to FROM plus lookahead. Phrases and plain
// dates cover whole days, so a TO day is included.
func (p *dateParser) bounds(args []string, now time.Time, lookahead time.Duration) (time.Time, time.Time, error) {
	from := p.day(now)
	if len(args) > 0 {
		t, _, err := p.parse(args[0], now)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		from = t
		if !hasClock(args[0]) {
			from = p.day(t)
		}
	}

	to := from.Add(lookahead)
	if len(args) > 1 {
		t, _, err := p.parse(args[1], now)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		to = t
		if !hasClock(args[1]) {
			to = p.day(t).AddDate(0, 0, 1)
		}
	}
	return from, to, nil
}

// hasClock reports whether s is one of the layouts carrying a time of day
func hasClock(s string) bool {
	for _, layout := range clockLayouts {
		if _, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return true
		}
	}
	return false
}
