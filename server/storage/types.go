package storage

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/PascalChui/ingenius-plan-sub000/server/recurrence"
	"github.com/samber/mo"
)

// Error types
type ErrorType string

const (
	ErrTypeNotFound      ErrorType = "not_found"
	ErrTypeAlreadyExists ErrorType = "already_exists"
	ErrTypeInvalidInput  ErrorType = "invalid_input"
	// ErrTypeSeriesMaster is returned when a single-event operation targets
	// a series master that only DeleteSeries may remove.
	ErrTypeSeriesMaster ErrorType = "series_master"
)

var (
	// ErrNotFound is returned when a requested event, series or calendar doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when an id is already taken
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidInput is returned when the input parameters are invalid
	ErrInvalidInput = errors.New("invalid input")
	// ErrSeriesMaster is returned when DeleteEvent is called with a series id
	ErrSeriesMaster = errors.New("operation not allowed on a series master")
)

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the same type, so callers can write
// errors.Is(err, storage.ErrNotFound).
func (e *Error) Is(target error) bool {
	switch e.Type {
	case ErrTypeNotFound:
		return target == ErrNotFound
	case ErrTypeAlreadyExists:
		return target == ErrAlreadyExists
	case ErrTypeInvalidInput:
		return target == ErrInvalidInput
	case ErrTypeSeriesMaster:
		return target == ErrSeriesMaster
	}
	return false
}

// NewError builds an *Error of the given type.
func NewError(typ ErrorType, message string, err error) *Error {
	return &Error{Type: typ, Message: message, Err: err}
}

// Category classifies an event
type Category string

const (
	CategoryWork        Category = "work"
	CategoryPersonal    Category = "personal"
	CategoryMeeting     Category = "meeting"
	CategoryAppointment Category = "appointment"
	CategoryHoliday     Category = "holiday"
	CategoryReminder    Category = "reminder"
	CategoryBooking     Category = "booking"
	CategoryOther       Category = "other"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryWork, CategoryPersonal, CategoryMeeting, CategoryAppointment,
	CategoryHoliday, CategoryReminder, CategoryBooking, CategoryOther,
}

func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// ParseCategory is case-insensitive. An empty string is CategoryOther.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CategoryOther, nil
	}
	c := Category(s)
	if !c.Valid() {
		return "", NewError(ErrTypeInvalidInput, fmt.Sprintf("unknown category %q", s), nil)
	}
	return c, nil
}

// Calendar is a named collection events belong to. Only events of active
// calendars show up in queries.
type Calendar struct {
	ID     string `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Color  string `yaml:"color,omitempty" json:"color,omitempty"`
	Active bool   `yaml:"active" json:"active"`
}

// Kind tells standalone events, series masters and occurrences apart.
// Exactly one of the three implementations is ever set on an Event.
type Kind interface {
	kindName() string
}

// Standalone is a one-off event.
type Standalone struct{}

// SeriesMaster carries the recurrence pattern of a series. Its event's
// Start is the anchor of the series.
type SeriesMaster struct {
	Pattern recurrence.Pattern
}

// Occurrence is one instance of a series, either generated on demand or
// persisted after being edited.
type Occurrence struct {
	SeriesID string
	// OriginalStart is the start the series generated for this instance.
	// It stays fixed when the occurrence is rescheduled.
	OriginalStart time.Time
	IsException   bool
}

func (Standalone) kindName() string   { return "standalone" }
func (SeriesMaster) kindName() string { return "series_master" }
func (Occurrence) kindName() string   { return "occurrence" }

// KindName returns "standalone", "series_master" or "occurrence".
func KindName(k Kind) string {
	if k == nil {
		return Standalone{}.kindName()
	}
	return k.kindName()
}

// Event is a calendar event record
type Event struct {
	ID          string
	CalendarID  string
	Title       string
	Description string
	Location    string
	Category    Category
	Start       time.Time
	End         time.Time
	AllDay      bool
	Kind        Kind // nil is treated as Standalone
	CreatedAt   time.Time
	UpdatedAt   mo.Option[time.Time]
	CreatedBy   string
}

// Recurrence returns the pattern of a series master.
func (e Event) Recurrence() mo.Option[recurrence.Pattern] {
	if m, ok := e.Kind.(SeriesMaster); ok {
		return mo.Some(m.Pattern)
	}
	return mo.None[recurrence.Pattern]()
}

// RecurrenceID returns the series id of an occurrence.
func (e Event) RecurrenceID() mo.Option[string] {
	if o, ok := e.Kind.(Occurrence); ok {
		return mo.Some(o.SeriesID)
	}
	return mo.None[string]()
}

func (e Event) IsSeriesMaster() bool {
	_, ok := e.Kind.(SeriesMaster)
	return ok
}

func (e Event) IsOccurrence() bool {
	_, ok := e.Kind.(Occurrence)
	return ok
}

// IsException reports whether the event is an occurrence that diverged
// from its series.
func (e Event) IsException() bool {
	o, ok := e.Kind.(Occurrence)
	return ok && o.IsException
}

func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Overlaps reports whether the event starts within [a, b), ends within
// (a, b] or spans the whole range. An event starting at b never overlaps,
// even when it has no length.
func (e Event) Overlaps(a, b time.Time) bool {
	startsWithin := !e.Start.Before(a) && e.Start.Before(b)
	endsWithin := e.Start.Before(b) && e.End.After(a) && !e.End.After(b)
	spans := !e.Start.After(a) && !e.End.Before(b)
	return startsWithin || endsWithin || spans
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	if m, ok := e.Kind.(SeriesMaster); ok {
		e.Kind = SeriesMaster{Pattern: m.Pattern.Clone()}
	}
	return e
}

// Validate checks the invariants every stored event holds.
func (e Event) Validate() error {
	if e.Start.IsZero() || e.End.IsZero() {
		return NewError(ErrTypeInvalidInput, "event needs a start and an end", nil)
	}
	if e.End.Before(e.Start) {
		return NewError(ErrTypeInvalidInput, "event ends before it starts", nil)
	}
	if !e.Category.Valid() {
		return NewError(ErrTypeInvalidInput, fmt.Sprintf("unknown category %q", e.Category), nil)
	}
	switch k := e.Kind.(type) {
	case SeriesMaster:
		if err := k.Pattern.Validate(); err != nil {
			return NewError(ErrTypeInvalidInput, "invalid recurrence pattern", err)
		}
	case Occurrence:
		if k.SeriesID == "" {
			return NewError(ErrTypeInvalidInput, "occurrence without a series id", nil)
		}
	}
	return nil
}

// EventPatch holds the fields an update changes. Unset fields are left
// as they are.
type EventPatch struct {
	CalendarID  mo.Option[string]
	Title       mo.Option[string]
	Description mo.Option[string]
	Location    mo.Option[string]
	Category    mo.Option[Category]
	Start       mo.Option[time.Time]
	End         mo.Option[time.Time]
	AllDay      mo.Option[bool]
	// Recurrence replaces the pattern of a series master. Setting it on a
	// standalone event turns the event into a series.
	Recurrence mo.Option[recurrence.Pattern]
}

// IsEmpty reports whether the patch changes nothing.
func (p EventPatch) IsEmpty() bool {
	return p.CalendarID.IsAbsent() && p.Title.IsAbsent() && p.Description.IsAbsent() &&
		p.Location.IsAbsent() && p.Category.IsAbsent() && p.Start.IsAbsent() &&
		p.End.IsAbsent() && p.AllDay.IsAbsent() && p.Recurrence.IsAbsent()
}

// Apply returns a copy of e with the patch applied. The result is
// validated; e is never modified.
func (p EventPatch) Apply(e Event) (Event, error) {
	out := e.Clone()
	if v, ok := p.CalendarID.Get(); ok {
		out.CalendarID = v
	}
	if v, ok := p.Title.Get(); ok {
		out.Title = v
	}
	if v, ok := p.Description.Get(); ok {
		out.Description = v
	}
	if v, ok := p.Location.Get(); ok {
		out.Location = v
	}
	if v, ok := p.Category.Get(); ok {
		out.Category = v
	}
	if v, ok := p.AllDay.Get(); ok {
		out.AllDay = v
	}

	// moving the start alone keeps the duration
	start, hasStart := p.Start.Get()
	end, hasEnd := p.End.Get()
	switch {
	case hasStart && hasEnd:
		out.Start, out.End = start, end
	case hasStart:
		out.Start, out.End = start, start.Add(e.Duration())
	case hasEnd:
		out.End = end
	}

	if pattern, ok := p.Recurrence.Get(); ok {
		if out.IsOccurrence() {
			return e, NewError(ErrTypeInvalidInput, "an occurrence cannot carry a recurrence pattern", nil)
		}
		out.Kind = SeriesMaster{Pattern: pattern.Normalize()}
	}

	if err := out.Validate(); err != nil {
		return e, err
	}
	return out, nil
}
