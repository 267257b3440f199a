/*
Package server is the root of the calendar engine: a store of one-off
events and recurring series, with queries that expand series into their
occurrences on the fly.

# Basic Usage

	store := memory.New(memory.WithLogger(logger))
	_, _ = store.AddCalendar(ctx, storage.Calendar{ID: "work", Name: "Work", Active: true})

	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.Local)
	id, err := store.AddEvent(ctx, storage.Event{
		Title: "Standup",
		Start: start,
		End:   start.Add(15 * time.Minute),
		Kind: storage.SeriesMaster{Pattern: recurrence.Pattern{
			Frequency: recurrence.Weekly,
			Interval:  1,
			WeekDays:  []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		}},
	})

	q := query.New(store, query.WithEngine(store.Engine()))
	events, err := q.EventsForRange(ctx, from, to, query.FilterFromCalendars(store.Calendars(), nil))

# Occurrences

Only series masters are stored. Their occurrences are generated per query
and carry derived ids of the form <series id>-<YYYY-MM-DD>, the date being
the generated (not the rescheduled) start. Editing, rescheduling or deleting
such an id through the store turns that one occurrence into an exception:

  - update and reschedule store a persisted copy under the same id, which
    replaces the generated occurrence in every later query
  - delete adds the date to the series' exception list

Deleting a series removes the master together with all of its persisted
exceptions.

# Packages

  - recurrence: the date matcher, the expansion engine with its cache and
    the RRULE codec
  - storage: event records, patches, errors, the materializer and ICS export
  - storage/memory: the authoritative in-memory store
  - storage/sqlite: write-behind persistence on SQLite
  - query: range and day queries with calendar and category filters
*/
package server
