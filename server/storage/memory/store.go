// Package memory holds the authoritative in-memory event store.
package memory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/PascalChui/ingenius-plan-sub000/internal/metric"
	"github.com/PascalChui/ingenius-plan-sub000/server/recurrence"
	"github.com/PascalChui/ingenius-plan-sub000/server/storage"
	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Store operation names, used as the "op" metric label
const (
	opAdd          = "add"
	opUpdate       = "update"
	opDelete       = "delete"
	opDeleteSeries = "delete_series"
	opReschedule   = "reschedule"
)

// Store maps event ids to events: standalone events, series masters and
// persisted exceptions. Transient occurrences are never stored; they are
// resolved from their series on demand.
type Store struct {
	mu        sync.RWMutex
	events    map[string]storage.Event
	calendars []storage.Calendar // insertion order

	engine    *recurrence.Engine
	persister storage.Persister
	logger    *slog.Logger
	metrics   *metric.Metrics
	now       func() time.Time
	newID     func() string
	user      string
}

// New creates a new in-memory store
func New(opts ...Option) *Store {
	s := &Store{
		events: make(map[string]storage.Event),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
		newID:  uuid.NewString,
	}

	// Apply options
	for _, opt := range opts {
		opt(s)
	}

	if s.engine == nil {
		s.engine = recurrence.NewEngine(recurrence.WithLogger(s.logger), recurrence.WithMetrics(s.metrics))
	}
	return s
}

// Option represents a configuration option for the Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for createdAt/updatedAt stamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator replaces uuid.NewString for fresh ids
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithUser sets the createdBy of new events
func WithUser(user string) Option {
	return func(s *Store) {
		s.user = user
	}
}

// WithEngine shares a recurrence engine (and its cache) with the store
func WithEngine(engine *recurrence.Engine) Option {
	return func(s *Store) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithPersister attaches a write-behind persister
func WithPersister(p storage.Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// WithMetrics records mutation metrics
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// Engine returns the recurrence engine the store resolves occurrences with
func (s *Store) Engine() *recurrence.Engine {
	return s.engine
}

// Calendar operations

// AddCalendar registers a calendar. An empty id is filled in.
func (s *Store) AddCalendar(ctx context.Context, cal storage.Calendar) (string, error) {
	s.mu.Lock()
	if cal.ID == "" {
		cal.ID = s.newID()
	}
	if s.calendarIndex(cal.ID) >= 0 {
		s.mu.Unlock()
		s.logger.Warn("failed to add calendar: already exists", "calendar_id", cal.ID)
		return "", storage.NewError(storage.ErrTypeAlreadyExists, "calendar already exists", nil)
	}
	s.calendars = append(s.calendars, cal)
	s.mu.Unlock()

	s.logger.Info("calendar added", "calendar_id", cal.ID, "active", cal.Active)
	s.persistCalendars(ctx, cal)
	return cal.ID, nil
}

// SetCalendarActive toggles whether a calendar's events show up in queries
func (s *Store) SetCalendarActive(ctx context.Context, calendarID string, active bool) error {
	s.mu.Lock()
	i := s.calendarIndex(calendarID)
	if i < 0 {
		s.mu.Unlock()
		s.logger.Warn("failed to toggle calendar: not found", "calendar_id", calendarID)
		return storage.NewError(storage.ErrTypeNotFound, "calendar not found", nil)
	}
	s.calendars[i].Active = active
	cal := s.calendars[i]
	s.mu.Unlock()

	s.persistCalendars(ctx, cal)
	return nil
}

// Calendars returns the registered calendars in insertion order
func (s *Store) Calendars() []storage.Calendar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.calendars)
}

func (s *Store) calendarIndex(id string) int {
	return slices.IndexFunc(s.calendars, func(c storage.Calendar) bool { return c.ID == id })
}

func (s *Store) firstActiveCalendar() (string, bool) {
	for _, c := range s.calendars {
		if c.Active {
			return c.ID, true
		}
	}
	return "", false
}

// Event reads

// Get returns the event with the given id. Derived occurrence ids of
// series are resolved too, as long as that date is a live occurrence.
func (s *Store) Get(id string) (storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.events[id]; ok {
		return e.Clone(), nil
	}
	if occ, ok := s.resolveOccurrence(id); ok {
		return occ, nil
	}
	return storage.Event{}, storage.NewError(storage.ErrTypeNotFound, fmt.Sprintf("event %q not found", id), nil)
}

// resolveOccurrence synthesises the transient occurrence behind a derived
// id. Callers hold the lock and have already checked the stored events.
func (s *Store) resolveOccurrence(id string) (storage.Event, bool) {
	seriesID, day, ok := storage.ParseOccurrenceID(id)
	if !ok {
		return storage.Event{}, false
	}
	series, ok := s.events[seriesID]
	if !ok {
		return storage.Event{}, false
	}
	master, ok := series.Kind.(storage.SeriesMaster)
	if !ok {
		return storage.Event{}, false
	}

	y, m, d := day.Date()
	local := time.Date(y, m, d, 0, 0, 0, 0, series.Start.Location())
	if !s.engine.IsOccurrence(series.Start, master.Pattern, local) {
		return storage.Event{}, false
	}
	return storage.SynthesizeOccurrence(series, local), true
}

// Events returns copies of every stored record ordered by start, then id
func (s *Store) Events() []storage.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedEvents(func(storage.Event) bool { return true })
}

// Series returns copies of the stored series masters
func (s *Store) Series() []storage.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedEvents(storage.Event.IsSeriesMaster)
}

// Snapshot returns a consistent copy of events and calendars
func (s *Store) Snapshot() storage.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return storage.Snapshot{
		Events:    s.sortedEvents(func(storage.Event) bool { return true }),
		Calendars: slices.Clone(s.calendars),
	}
}

func (s *Store) sortedEvents(keep func(storage.Event) bool) []storage.Event {
	out := make([]storage.Event, 0, len(s.events))
	for _, e := range s.events {
		if keep(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Load installs previously persisted state, replacing records with the same
// id. Nothing is written back to the persister. Either every event is
// installed or, on the first invalid one, none is.
func (s *Store) Load(events []storage.Event, calendars []storage.Calendar) error {
	installed := make([]storage.Event, 0, len(events))
	for _, e := range events {
		if e.ID == "" {
			return storage.NewError(storage.ErrTypeInvalidInput, "loaded event without id", nil)
		}
		if m, ok := e.Kind.(storage.SeriesMaster); ok {
			e.Kind = storage.SeriesMaster{Pattern: m.Pattern.Normalize()}
		}
		if err := e.Validate(); err != nil {
			return fmt.Errorf("load event %q: %w", e.ID, err)
		}
		installed = append(installed, e.Clone())
	}

	s.mu.Lock()
	for _, cal := range calendars {
		if i := s.calendarIndex(cal.ID); i >= 0 {
			s.calendars[i] = cal
		} else {
			s.calendars = append(s.calendars, cal)
		}
	}
	for _, e := range installed {
		s.events[e.ID] = e
	}
	n := len(s.events)
	s.mu.Unlock()

	s.metrics.SetStoredEvents(n)
	s.logger.Info("loaded persisted state", "events", len(installed), "calendars", len(calendars))
	return nil
}

// Mutations

// AddEvent stores a standalone event or a series master and returns its
// fresh id. The id, createdAt and createdBy of fields are assigned by the
// store; an empty calendar id means the first active calendar.
func (s *Store) AddEvent(ctx context.Context, fields storage.Event) (string, error) {
	s.mu.Lock()
	e, err := s.prepareNew(fields)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("failed to add event", "title", fields.Title, "error", err)
		s.metrics.Mutation(opAdd, resultOf(err))
		return "", err
	}
	s.events[e.ID] = e
	n := len(s.events)
	s.mu.Unlock()

	s.logger.Info("event added", "event_id", e.ID, "kind", storage.KindName(e.Kind), "calendar_id", e.CalendarID)
	s.metrics.Mutation(opAdd, metric.ResultOK)
	s.metrics.SetStoredEvents(n)
	s.persistSave(ctx, e)
	return e.ID, nil
}

func (s *Store) prepareNew(fields storage.Event) (storage.Event, error) {
	if fields.IsOccurrence() {
		return storage.Event{}, storage.NewError(storage.ErrTypeInvalidInput,
			"occurrences cannot be added directly; edit the series occurrence instead", nil)
	}

	e := fields.Clone()
	e.ID = s.newID()
	if _, exists := s.events[e.ID]; exists {
		return storage.Event{}, storage.NewError(storage.ErrTypeAlreadyExists, fmt.Sprintf("event %q already exists", e.ID), nil)
	}
	if e.Kind == nil {
		e.Kind = storage.Standalone{}
	}
	if m, ok := e.Kind.(storage.SeriesMaster); ok {
		e.Kind = storage.SeriesMaster{Pattern: m.Pattern.Normalize()}
	}
	if e.Category == "" {
		e.Category = storage.CategoryOther
	}
	e.CreatedAt = s.now()
	e.UpdatedAt = mo.None[time.Time]()
	if s.user != "" || e.CreatedBy == "" {
		e.CreatedBy = s.user
	}

	if e.CalendarID == "" {
		id, ok := s.firstActiveCalendar()
		if !ok {
			return storage.Event{}, storage.NewError(storage.ErrTypeInvalidInput, "no calendar given and no active calendar", nil)
		}
		e.CalendarID = id
	} else if err := s.checkCalendar(e.CalendarID); err != nil {
		return storage.Event{}, err
	}

	if err := e.Validate(); err != nil {
		return storage.Event{}, err
	}
	return e, nil
}

func (s *Store) checkCalendar(id string) error {
	if s.calendarIndex(id) < 0 {
		return storage.NewError(storage.ErrTypeNotFound, fmt.Sprintf("calendar %q not found", id), nil)
	}
	return nil
}

// UpdateEvent applies patch to an event and returns the result.
//
// Occurrences (persisted or transient) become exceptions; a transient one
// is promoted into a stored record under its derived id. Standalone events
// and series masters are changed in place. Replacing the pattern of a
// series keeps its detached dates.
func (s *Store) UpdateEvent(ctx context.Context, id string, patch storage.EventPatch) (storage.Event, error) {
	return s.update(ctx, opUpdate, id, patch)
}

// RescheduleEvent moves an event to newStart, keeping its duration. Series
// occurrences are promoted to exceptions like UpdateEvent does; moving a
// series master moves the anchor of the whole series.
func (s *Store) RescheduleEvent(ctx context.Context, id string, newStart time.Time) (storage.Event, error) {
	if newStart.IsZero() {
		err := storage.NewError(storage.ErrTypeInvalidInput, "reschedule needs a start time", nil)
		s.logger.Warn("failed to reschedule event", "event_id", id, "error", err)
		s.metrics.Mutation(opReschedule, resultOf(err))
		return storage.Event{}, err
	}
	return s.update(ctx, opReschedule, id, storage.EventPatch{Start: mo.Some(newStart)})
}

func (s *Store) update(ctx context.Context, op, id string, patch storage.EventPatch) (storage.Event, error) {
	s.mu.Lock()
	updated, promoted, err := s.applyUpdate(id, patch)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("failed to "+op+" event", "event_id", id, "error", err)
		s.metrics.Mutation(op, resultOf(err))
		return storage.Event{}, err
	}
	s.events[updated.ID] = updated
	n := len(s.events)
	s.mu.Unlock()

	if promoted {
		s.logger.Info("occurrence promoted to exception", "event_id", updated.ID, "series_id", updated.RecurrenceID().OrEmpty())
	}
	s.logger.Info("event "+op+"d", "event_id", updated.ID)
	s.metrics.Mutation(op, metric.ResultOK)
	s.metrics.SetStoredEvents(n)
	s.persistSave(ctx, updated)
	return updated.Clone(), nil
}

// applyUpdate computes the patched record without storing it. Callers
// hold the write lock.
func (s *Store) applyUpdate(id string, patch storage.EventPatch) (storage.Event, bool, error) {
	target, stored := s.events[id]
	if !stored {
		occ, ok := s.resolveOccurrence(id)
		if !ok {
			return storage.Event{}, false, storage.NewError(storage.ErrTypeNotFound, fmt.Sprintf("event %q not found", id), nil)
		}
		target = occ
	}

	if cid, ok := patch.CalendarID.Get(); ok {
		if err := s.checkCalendar(cid); err != nil {
			return storage.Event{}, false, err
		}
	}

	updated, err := patch.Apply(target)
	if err != nil {
		return storage.Event{}, false, err
	}

	switch k := updated.Kind.(type) {
	case storage.Occurrence:
		k.IsException = true
		updated.Kind = k
	case storage.SeriesMaster:
		if old, ok := target.Kind.(storage.SeriesMaster); ok {
			pattern := k.Pattern
			for _, ex := range old.Pattern.Exceptions {
				pattern = pattern.WithException(ex)
			}
			updated.Kind = storage.SeriesMaster{Pattern: pattern}
		}
	}
	updated.UpdatedAt = mo.Some(s.now())
	return updated, !stored, nil
}

// DeleteEvent removes a single event. Deleting an occurrence (persisted or
// transient) detaches its original date from the series so it is never
// generated again. Series masters are refused; use DeleteSeries.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	target, stored := s.events[id]
	if !stored {
		occ, ok := s.resolveOccurrence(id)
		if !ok {
			s.mu.Unlock()
			err := storage.NewError(storage.ErrTypeNotFound, fmt.Sprintf("event %q not found", id), nil)
			s.logger.Warn("failed to delete event", "event_id", id, "error", err)
			s.metrics.Mutation(opDelete, resultOf(err))
			return err
		}
		target = occ
	}

	var (
		deleted []string
		saved   []storage.Event
	)
	switch k := target.Kind.(type) {
	case storage.SeriesMaster:
		s.mu.Unlock()
		err := storage.NewError(storage.ErrTypeSeriesMaster, fmt.Sprintf("event %q is a series; delete the series instead", id), nil)
		s.logger.Warn("failed to delete event", "event_id", id, "error", err)
		s.metrics.Mutation(opDelete, resultOf(err))
		return err

	case storage.Occurrence:
		parent, ok := s.detach(k.SeriesID, k.OriginalStart)
		if !ok {
			s.mu.Unlock()
			err := storage.NewError(storage.ErrTypeNotFound, fmt.Sprintf("parent series %q of %q not found", k.SeriesID, id), nil)
			s.logger.Warn("failed to delete occurrence", "event_id", id, "series_id", k.SeriesID, "error", err)
			s.metrics.Mutation(opDelete, resultOf(err))
			return err
		}
		saved = append(saved, parent)
		if stored {
			delete(s.events, id)
			deleted = append(deleted, id)
		}

	default:
		delete(s.events, id)
		deleted = append(deleted, id)
	}
	n := len(s.events)
	s.mu.Unlock()

	s.logger.Info("event deleted", "event_id", id, "kind", storage.KindName(target.Kind))
	s.metrics.Mutation(opDelete, metric.ResultOK)
	s.metrics.SetStoredEvents(n)
	s.persistDelete(ctx, deleted...)
	s.persistSave(ctx, saved...)
	return nil
}

// detach appends day to the exceptions of a series. Callers hold the write lock.
func (s *Store) detach(seriesID string, day time.Time) (storage.Event, bool) {
	series, ok := s.events[seriesID]
	if !ok {
		return storage.Event{}, false
	}
	master, ok := series.Kind.(storage.SeriesMaster)
	if !ok {
		return storage.Event{}, false
	}
	// the exception is a civil date of the anchor's calendar
	day = day.In(series.Start.Location())
	series.Kind = storage.SeriesMaster{Pattern: master.Pattern.WithException(day)}
	series.UpdatedAt = mo.Some(s.now())
	s.events[seriesID] = series
	return series.Clone(), true
}

// DeleteSeries removes a series master together with all its persisted
// exceptions and returns the removed ids.
func (s *Store) DeleteSeries(ctx context.Context, id string) ([]string, error) {
	s.mu.Lock()
	series, ok := s.events[id]
	if !ok || !series.IsSeriesMaster() {
		s.mu.Unlock()
		var err error
		if !ok {
			err = storage.NewError(storage.ErrTypeNotFound, fmt.Sprintf("series %q not found", id), nil)
		} else {
			err = storage.NewError(storage.ErrTypeInvalidInput, fmt.Sprintf("event %q is not a series", id), nil)
		}
		s.logger.Warn("failed to delete series", "series_id", id, "error", err)
		s.metrics.Mutation(opDeleteSeries, resultOf(err))
		return nil, err
	}

	removed := []string{id}
	delete(s.events, id)
	for eid, e := range s.events {
		if e.RecurrenceID().OrEmpty() == id {
			delete(s.events, eid)
			removed = append(removed, eid)
		}
	}
	n := len(s.events)
	s.mu.Unlock()

	sort.Strings(removed[1:])
	s.logger.Info("series deleted", "series_id", id, "exceptions", len(removed)-1)
	s.metrics.Mutation(opDeleteSeries, metric.ResultOK)
	s.metrics.SetStoredEvents(n)
	s.persistDelete(ctx, removed...)
	return removed, nil
}

// Write-behind. These run after the lock is released; failures are logged
// and counted, never returned.

func (s *Store) persistSave(ctx context.Context, events ...storage.Event) {
	if s.persister == nil || len(events) == 0 {
		return
	}
	if err := s.persister.SaveEvents(ctx, events...); err != nil {
		s.metrics.PersistFailed()
		s.logger.Error("failed to persist events", "count", len(events), "error", err)
	}
}

func (s *Store) persistDelete(ctx context.Context, ids ...string) {
	if s.persister == nil || len(ids) == 0 {
		return
	}
	if err := s.persister.DeleteEvents(ctx, ids...); err != nil {
		s.metrics.PersistFailed()
		s.logger.Error("failed to persist deletion", "ids", ids, "error", err)
	}
}

func (s *Store) persistCalendars(ctx context.Context, calendars ...storage.Calendar) {
	if s.persister == nil || len(calendars) == 0 {
		return
	}
	if err := s.persister.SaveCalendars(ctx, calendars...); err != nil {
		s.metrics.PersistFailed()
		s.logger.Error("failed to persist calendars", "count", len(calendars), "error", err)
	}
}

func resultOf(err error) string {
	if errors.Is(err, storage.ErrNotFound) {
		return metric.ResultNotFound
	}
	return metric.ResultInvalid
}
