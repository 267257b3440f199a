package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/PascalChui/ingenius-plan-sub000/server/recurrence"
	"github.com/PascalChui/ingenius-plan-sub000/server/storage"
	"github.com/PascalChui/ingenius-plan-sub000/server/storage/memory"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(db)
	require.NoError(t, s.CreateSchema(context.Background()))
	// creating the schema twice is harmless
	require.NoError(t, s.CreateSchema(context.Background()))
	return s
}

func TestStore_EventRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	start := time.Date(2025, 1, 6, 9, 30, 0, 0, time.UTC)
	standalone := storage.NewMockEvent("e1", "work", "Dentist", start, start.Add(time.Hour))
	standalone.Description = "check-up"
	standalone.Category = storage.CategoryAppointment
	standalone.UpdatedAt = mo.Some(start.Add(-time.Hour))

	series := storage.NewMockSeries("s1", "work", "Standup", start, start.Add(15*time.Minute), recurrence.Pattern{
		Frequency:    recurrence.Monthly,
		Interval:     2,
		MonthWeek:    mo.Some(recurrence.LastWeekOfMonth),
		MonthWeekDay: mo.Some(time.Friday),
		EndDate:      mo.Some(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)),
		Exceptions:   []time.Time{time.Date(2025, 3, 28, 0, 0, 0, 0, time.UTC)},
	})

	exception := storage.SynthesizeOccurrence(series, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))
	exception.Title = "Standup (moved)"
	exception.Kind = storage.Occurrence{SeriesID: "s1", OriginalStart: exception.Start, IsException: true}

	require.NoError(t, s.SaveEvents(ctx, standalone, series, exception))

	events, err := s.LoadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 3)

	byID := map[string]storage.Event{}
	for _, e := range events {
		byID[e.ID] = e
	}

	got := byID["e1"]
	assert.True(t, standalone.Start.Equal(got.Start))
	assert.True(t, standalone.End.Equal(got.End))
	assert.Equal(t, "check-up", got.Description)
	assert.Equal(t, storage.CategoryAppointment, got.Category)
	assert.True(t, got.UpdatedAt.MustGet().Equal(start.Add(-time.Hour)))
	assert.Equal(t, storage.Standalone{}, got.Kind)

	got = byID["s1"]
	require.True(t, got.IsSeriesMaster())
	assert.Equal(t, series.Recurrence().MustGet().Normalize(), got.Recurrence().MustGet())

	got = byID[exception.ID]
	occ, ok := got.Kind.(storage.Occurrence)
	require.True(t, ok)
	assert.Equal(t, "s1", occ.SeriesID)
	assert.True(t, occ.IsException)
	assert.True(t, exception.Start.Equal(occ.OriginalStart))
	assert.Equal(t, "Standup (moved)", got.Title)
}

func TestStore_UpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)

	e := storage.NewMockEvent("e1", "work", "Lunch", start, start.Add(time.Hour))
	require.NoError(t, s.SaveEvents(ctx, e))
	e.Title = "Late lunch"
	require.NoError(t, s.SaveEvents(ctx, e))

	events, err := s.LoadEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Late lunch", events[0].Title)

	require.NoError(t, s.DeleteEvents(ctx, "e1", "unknown"))
	events, err = s.LoadEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	require.NoError(t, s.SaveEvents(ctx))
	require.NoError(t, s.DeleteEvents(ctx))
}

func TestStore_Calendars(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveCalendars(ctx,
		storage.Calendar{ID: "work", Name: "Work", Active: true},
		storage.Calendar{ID: "home", Name: "Home", Color: "#00ff00"},
	))
	require.NoError(t, s.SaveCalendars(ctx, storage.Calendar{ID: "work", Name: "Work", Active: false}))

	calendars, err := s.LoadCalendars(ctx)
	require.NoError(t, err)
	assert.Equal(t, []storage.Calendar{
		{ID: "work", Name: "Work", Active: false},
		{ID: "home", Name: "Home", Color: "#00ff00"},
	}, calendars)
}

func TestStore_WriteBehindFromMemoryStore(t *testing.T) {
	ctx := context.Background()
	persister := newTestStore(t)

	mem := memory.New(memory.WithPersister(persister))
	_, err := mem.AddCalendar(ctx, storage.Calendar{ID: "work", Name: "Work", Active: true})
	require.NoError(t, err)

	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	seriesID, err := mem.AddEvent(ctx, storage.Event{
		Title: "Standup",
		Start: start,
		End:   start.Add(15 * time.Minute),
		Kind:  storage.SeriesMaster{Pattern: recurrence.Pattern{Frequency: recurrence.Daily, Interval: 1}},
	})
	require.NoError(t, err)
	_, err = mem.UpdateEvent(ctx, storage.OccurrenceID(seriesID, start.AddDate(0, 0, 1)), storage.EventPatch{Title: mo.Some("Demo")})
	require.NoError(t, err)
	require.NoError(t, mem.DeleteEvent(ctx, storage.OccurrenceID(seriesID, start.AddDate(0, 0, 2))))

	// a fresh store loaded from the database sees the same state
	reloaded := memory.New()
	require.NoError(t, persister.LoadInto(ctx, reloaded))
	assert.Len(t, reloaded.Calendars(), 1)
	assert.Len(t, reloaded.Events(), 2)

	occ, err := reloaded.Get(storage.OccurrenceID(seriesID, start.AddDate(0, 0, 1)))
	require.NoError(t, err)
	assert.Equal(t, "Demo", occ.Title)
	_, err = reloaded.Get(storage.OccurrenceID(seriesID, start.AddDate(0, 0, 2)))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = reloaded.Get(storage.OccurrenceID(seriesID, start.AddDate(0, 0, 3)))
	assert.NoError(t, err)

	_, err = mem.DeleteSeries(ctx, seriesID)
	require.NoError(t, err)
	events, err := persister.LoadEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}
