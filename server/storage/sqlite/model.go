package sqlite

import (
	"fmt"
	"time"

	"github.com/PascalChui/ingenius-plan-sub000/server/recurrence"
	"github.com/PascalChui/ingenius-plan-sub000/server/storage"
	"github.com/samber/mo"
	"github.com/uptrace/bun"
)

const (
	kindStandalone   = "standalone"
	kindSeriesMaster = "series_master"
	kindOccurrence   = "occurrence"
)

// EventRow is one stored event. Series masters keep their pattern as an
// RRULE plus a date-only EXDATE list.
type EventRow struct {
	bun.BaseModel `bun:"table:events"`

	ID          string `bun:"id,pk,notnull"`
	CalendarID  string `bun:"calendar_id,notnull"`
	Title       string `bun:"title,notnull"`
	Description string `bun:"description"`
	Location    string `bun:"location"`
	Category    string `bun:"category,notnull"`

	StartDate int64  `bun:"start_date,notnull"`
	EndDate   int64  `bun:"end_date,notnull"`
	TimeZone  string `bun:"time_zone,notnull"`
	AllDay    bool   `bun:"all_day,notnull"`

	Kind          string `bun:"kind,notnull"`
	RRule         string `bun:"rrule"`
	ExDate        string `bun:"exdate"`
	RecurrenceID  string `bun:"recurrence_id"`
	OriginalStart int64  `bun:"original_start"`
	IsException   bool   `bun:"is_exception"`

	CreatedAt int64  `bun:"created_at,notnull"`
	UpdatedAt int64  `bun:"updated_at"`
	CreatedBy string `bun:"created_by"`
}

// CalendarRow is one stored calendar. Rows are read back in rowid order,
// which is the order they were first written.
type CalendarRow struct {
	bun.BaseModel `bun:"table:calendars"`

	ID     string `bun:"id,pk,notnull"`
	Name   string `bun:"name,notnull"`
	Color  string `bun:"color"`
	Active bool   `bun:"active,notnull"`
}

// FromEvent fills the row from a store event
func (r *EventRow) FromEvent(e storage.Event) error {
	*r = EventRow{
		ID:          e.ID,
		CalendarID:  e.CalendarID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		Category:    string(e.Category),
		StartDate:   e.Start.Unix(),
		EndDate:     e.End.Unix(),
		TimeZone:    e.Start.Location().String(),
		AllDay:      e.AllDay,
		CreatedAt:   e.CreatedAt.Unix(),
		CreatedBy:   e.CreatedBy,
	}
	if updated, ok := e.UpdatedAt.Get(); ok {
		r.UpdatedAt = updated.Unix()
	}

	switch k := e.Kind.(type) {
	case storage.SeriesMaster:
		rule, err := k.Pattern.RRule()
		if err != nil {
			return fmt.Errorf("EventRow.FromEvent: %s: %w", e.ID, err)
		}
		r.Kind = kindSeriesMaster
		r.RRule = rule
		r.ExDate = recurrence.FormatExceptionDates(k.Pattern.Exceptions)
	case storage.Occurrence:
		r.Kind = kindOccurrence
		r.RecurrenceID = k.SeriesID
		r.OriginalStart = k.OriginalStart.Unix()
		r.IsException = k.IsException
	default:
		r.Kind = kindStandalone
	}
	return nil
}

// ToEvent converts the row back into a store event. Times are restored in
// the row's time zone, falling back to UTC when it can't be loaded.
func (r *EventRow) ToEvent() (storage.Event, error) {
	loc, err := time.LoadLocation(r.TimeZone)
	if err != nil {
		loc = time.UTC
	}

	e := storage.Event{
		ID:          r.ID,
		CalendarID:  r.CalendarID,
		Title:       r.Title,
		Description: r.Description,
		Location:    r.Location,
		Category:    storage.Category(r.Category),
		Start:       time.Unix(r.StartDate, 0).In(loc),
		End:         time.Unix(r.EndDate, 0).In(loc),
		AllDay:      r.AllDay,
		CreatedAt:   time.Unix(r.CreatedAt, 0).UTC(),
		CreatedBy:   r.CreatedBy,
	}
	if r.UpdatedAt != 0 {
		e.UpdatedAt = mo.Some(time.Unix(r.UpdatedAt, 0).UTC())
	}

	switch r.Kind {
	case kindSeriesMaster:
		pattern, err := recurrence.ParseRRule(r.RRule)
		if err != nil {
			return storage.Event{}, fmt.Errorf("EventRow.ToEvent: %s: %w", r.ID, err)
		}
		pattern.Exceptions = recurrence.ParseExceptionDates(r.ExDate)
		e.Kind = storage.SeriesMaster{Pattern: pattern.Normalize()}
	case kindOccurrence:
		e.Kind = storage.Occurrence{
			SeriesID:      r.RecurrenceID,
			OriginalStart: time.Unix(r.OriginalStart, 0).In(loc),
			IsException:   r.IsException,
		}
	case kindStandalone, "":
		e.Kind = storage.Standalone{}
	default:
		return storage.Event{}, fmt.Errorf("EventRow.ToEvent: %s: unknown kind %q", r.ID, r.Kind)
	}
	return e, nil
}

func calendarRow(c storage.Calendar) CalendarRow {
	return CalendarRow{ID: c.ID, Name: c.Name, Color: c.Color, Active: c.Active}
}

func (r CalendarRow) toCalendar() storage.Calendar {
	return storage.Calendar{ID: r.ID, Name: r.Name, Color: r.Color, Active: r.Active}
}
