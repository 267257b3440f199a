// Package seed reads calendars and events from a YAML file and adds them to
// an event store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/PascalChui/ingenius-plan-sub000/server/recurrence"
	"github.com/PascalChui/ingenius-plan-sub000/server/storage"
	"github.com/samber/mo"
	"gopkg.in/yaml.v3"
)

// File is the YAML layout of a seed file.
type File struct {
	Calendars []storage.Calendar `yaml:"calendars"`
	Events    []Event            `yaml:"events"`
}

type Event struct {
	Title       string      `yaml:"title"`
	Calendar    string      `yaml:"calendar"`
	Category    string      `yaml:"category"`
	Description string      `yaml:"description"`
	Location    string      `yaml:"location"`
	Start       string      `yaml:"start"`
	End         string      `yaml:"end"`
	AllDay      bool        `yaml:"all_day"`
	Recurrence  *Recurrence `yaml:"recurrence"`
}

// Recurrence is either an RRULE string or the pattern spelled out field by
// field.
type Recurrence struct {
	RRule        string   `yaml:"rrule"`
	Frequency    string   `yaml:"frequency"`
	Interval     int      `yaml:"interval"`
	WeekDays     []string `yaml:"week_days"`
	MonthDay     *int     `yaml:"month_day"`
	MonthWeek    *int     `yaml:"month_week"`
	MonthWeekDay string   `yaml:"month_week_day"`
	EndDate      string   `yaml:"end_date"`
	Count        *int     `yaml:"count"`
}

// Store is what Apply adds to
type Store interface {
	AddCalendar(ctx context.Context, cal storage.Calendar) (string, error)
	AddEvent(ctx context.Context, fields storage.Event) (string, error)
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Read decodes a seed file. Unknown keys are rejected.
func Read(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("decode seed file: %w", err)
	}
	return f, nil
}

func ReadFile(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, err
	}
	defer fh.Close()
	return Read(fh)
}

// ToEvents converts the file's events. Times without an offset are read in
// loc.
func (f File) ToEvents(loc *time.Location) ([]storage.Event, error) {
	out := make([]storage.Event, 0, len(f.Events))
	for i, se := range f.Events {
		e, err := se.toEvent(loc)
		if err != nil {
			return nil, fmt.Errorf("event %d (%q): %w", i+1, se.Title, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Apply adds the calendars, skipping ones that already exist, then the
// events. It returns the ids of the added events.
func (f File) Apply(ctx context.Context, store Store, loc *time.Location) ([]string, error) {
	events, err := f.ToEvents(loc)
	if err != nil {
		return nil, err
	}
	for _, cal := range f.Calendars {
		if _, err := store.AddCalendar(ctx, cal); err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("add calendar %q: %w", cal.ID, err)
		}
	}

	ids := make([]string, 0, len(events))
	for _, e := range events {
		id, err := store.AddEvent(ctx, e)
		if err != nil {
			return ids, fmt.Errorf("add event %q: %w", e.Title, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (se Event) toEvent(loc *time.Location) (storage.Event, error) {
	category, err := storage.ParseCategory(se.Category)
	if err != nil {
		return storage.Event{}, err
	}
	start, err := parseTime(se.Start, loc)
	if err != nil {
		return storage.Event{}, fmt.Errorf("start: %w", err)
	}

	var end time.Time
	switch {
	case se.End != "":
		if end, err = parseTime(se.End, loc); err != nil {
			return storage.Event{}, fmt.Errorf("end: %w", err)
		}
	case se.AllDay:
		end = start.AddDate(0, 0, 1)
	default:
		end = start.Add(time.Hour)
	}

	e := storage.Event{
		CalendarID:  se.Calendar,
		Title:       se.Title,
		Description: se.Description,
		Location:    se.Location,
		Category:    category,
		Start:       start,
		End:         end,
		AllDay:      se.AllDay,
		Kind:        storage.Standalone{},
	}
	if se.Recurrence != nil {
		p, err := se.Recurrence.pattern(loc)
		if err != nil {
			return storage.Event{}, fmt.Errorf("recurrence: %w", err)
		}
		e.Kind = storage.SeriesMaster{Pattern: p}
	}
	return e, nil
}

func (r Recurrence) pattern(loc *time.Location) (recurrence.Pattern, error) {
	if r.RRule != "" {
		if r.Frequency != "" {
			return recurrence.Pattern{}, errors.New("rrule and frequency are mutually exclusive")
		}
		return recurrence.ParseRRule(r.RRule)
	}

	p := recurrence.Pattern{
		Frequency: recurrence.Frequency(strings.ToLower(strings.TrimSpace(r.Frequency))),
		Interval:  r.Interval,
	}
	if p.Interval == 0 {
		p.Interval = 1
	}
	for _, code := range r.WeekDays {
		wd, err := recurrence.ParseWeekday(code)
		if err != nil {
			return recurrence.Pattern{}, err
		}
		p.WeekDays = append(p.WeekDays, wd)
	}
	if r.MonthDay != nil {
		p.MonthDay = mo.Some(*r.MonthDay)
	}
	if r.MonthWeek != nil {
		p.MonthWeek = mo.Some(*r.MonthWeek)
	}
	if r.MonthWeekDay != "" {
		wd, err := recurrence.ParseWeekday(r.MonthWeekDay)
		if err != nil {
			return recurrence.Pattern{}, err
		}
		p.MonthWeekDay = mo.Some(wd)
	}
	if r.EndDate != "" {
		end, err := parseTime(r.EndDate, loc)
		if err != nil {
			return recurrence.Pattern{}, fmt.Errorf("end_date: %w", err)
		}
		p.EndDate = mo.Some(end)
	}
	if r.Count != nil {
		p.Count = mo.Some(*r.Count)
	}
	if err := p.Validate(); err != nil {
		return recurrence.Pattern{}, err
	}
	return p.Normalize(), nil
}

func parseTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("missing time")
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}
