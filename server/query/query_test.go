package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/PascalChui/ingenius-plan-sub000/server/recurrence"
	"github.com/PascalChui/ingenius-plan-sub000/server/storage"
	"github.com/PascalChui/ingenius-plan-sub000/server/storage/memory"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store   *memory.Store
	querier *Querier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.New()
	for _, cal := range []storage.Calendar{
		{ID: "work", Name: "Work", Active: true},
		{ID: "home", Name: "Home", Active: true},
	} {
		_, err := store.AddCalendar(ctx, cal)
		require.NoError(t, err)
	}
	return fixture{
		store:   store,
		querier: New(store, WithEngine(store.Engine()), WithClock(func() time.Time { return date(2025, 1, 6).Add(12 * time.Hour) })),
	}
}

func (f fixture) add(t *testing.T, e storage.Event) string {
	t.Helper()
	id, err := f.store.AddEvent(ctx, e)
	require.NoError(t, err)
	return id
}

func (f fixture) rangeIDs(t *testing.T, a, b time.Time, filter Filter) []string {
	t.Helper()
	events, err := f.querier.EventsForRange(ctx, a, b, filter)
	require.NoError(t, err)
	Sort(events)
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}

func daily(interval int) storage.Kind {
	return storage.SeriesMaster{Pattern: recurrence.Pattern{Frequency: recurrence.Daily, Interval: interval}}
}

func TestEventsForRange_CombinesStandaloneAndSeries(t *testing.T) {
	f := newFixture(t)
	start := date(2025, 1, 1).Add(9 * time.Hour)
	seriesID := f.add(t, storage.Event{Title: "Run", CalendarID: "home", Start: start, End: start.Add(time.Hour), Kind: daily(2)})
	lunchID := f.add(t, storage.Event{Title: "Lunch", CalendarID: "work", Start: date(2025, 1, 4).Add(12 * time.Hour), End: date(2025, 1, 4).Add(13 * time.Hour)})
	f.add(t, storage.Event{Title: "Later", CalendarID: "work", Start: date(2025, 2, 1), End: date(2025, 2, 1).Add(time.Hour)})

	ids := f.rangeIDs(t, date(2025, 1, 1), date(2025, 1, 10), Filter{})
	assert.Equal(t, []string{
		seriesID + "-2025-01-01",
		seriesID + "-2025-01-03",
		lunchID,
		seriesID + "-2025-01-05",
		seriesID + "-2025-01-07",
		seriesID + "-2025-01-09",
	}, ids)
}

func TestEventsForRange_Idempotent(t *testing.T) {
	f := newFixture(t)
	start := date(2025, 1, 6).Add(10 * time.Hour)
	f.add(t, storage.Event{Title: "Sync", Start: start, End: start.Add(time.Hour), Kind: storage.SeriesMaster{Pattern: recurrence.Pattern{
		Frequency: recurrence.Weekly, Interval: 1, WeekDays: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
	}}})

	first := f.rangeIDs(t, date(2025, 1, 6), date(2025, 1, 20), Filter{})
	second := f.rangeIDs(t, date(2025, 1, 6), date(2025, 1, 20), Filter{})
	assert.Len(t, first, 6)
	assert.Equal(t, first, second)
}

func TestEventsForRange_DetachOneOccurrence(t *testing.T) {
	f := newFixture(t)
	start := date(2025, 1, 1).Add(9 * time.Hour)
	seriesID := f.add(t, storage.Event{Title: "Standup", Start: start, End: start.Add(15 * time.Minute), Kind: daily(1)})

	before := f.rangeIDs(t, date(2025, 1, 1), date(2025, 1, 8), Filter{})
	require.Len(t, before, 7)

	require.NoError(t, f.store.DeleteEvent(ctx, before[3]))
	after := f.rangeIDs(t, date(2025, 1, 1), date(2025, 1, 8), Filter{})
	assert.Len(t, after, len(before)-1)
	assert.NotContains(t, after, before[3])
	for _, id := range after {
		assert.Contains(t, before, id)
	}
	assert.Equal(t, seriesID+"-2025-01-04", before[3])
}

func TestEventsForRange_ExceptionsShadowOccurrences(t *testing.T) {
	f := newFixture(t)
	start := date(2025, 1, 1).Add(9 * time.Hour)
	seriesID := f.add(t, storage.Event{Title: "Standup", Start: start, End: start.Add(15 * time.Minute), Kind: daily(1)})

	// edited in place
	_, err := f.store.UpdateEvent(ctx, seriesID+"-2025-01-02", storage.EventPatch{Title: mo.Some("Demo")})
	require.NoError(t, err)
	// moved out of the window
	_, err = f.store.RescheduleEvent(ctx, seriesID+"-2025-01-03", date(2025, 2, 1).Add(9*time.Hour))
	require.NoError(t, err)

	events, err := f.querier.EventsForRange(ctx, date(2025, 1, 1), date(2025, 1, 5), Filter{})
	require.NoError(t, err)
	Sort(events)

	var titles []string
	for _, e := range events {
		titles = append(titles, fmt.Sprintf("%s %s", recurrence.DateKey(e.Start), e.Title))
	}
	assert.Equal(t, []string{"2025-01-01 Standup", "2025-01-02 Demo", "2025-01-04 Standup"}, titles)

	// the moved exception shows up where it now lives, next to that day's
	// own occurrence
	ids := f.rangeIDs(t, date(2025, 2, 1), date(2025, 2, 2), Filter{})
	assert.Equal(t, []string{seriesID + "-2025-01-03", seriesID + "-2025-02-01"}, ids)
}

func TestEventsForRange_NoDuplicates(t *testing.T) {
	f := newFixture(t)
	start := date(2025, 1, 1).Add(9 * time.Hour)
	for i := 0; i < 3; i++ {
		f.add(t, storage.Event{Title: fmt.Sprintf("Series %d", i), Start: start.Add(time.Duration(i) * time.Hour), End: start.Add(time.Duration(i+1) * time.Hour), Kind: daily(i + 1)})
	}
	seriesID := f.add(t, storage.Event{Title: "Long", Start: start, End: start.Add(50 * time.Hour), Kind: daily(1)})
	_, err := f.store.UpdateEvent(ctx, seriesID+"-2025-01-05", storage.EventPatch{Title: mo.Some("Long (edited)")})
	require.NoError(t, err)
	f.add(t, storage.Event{Title: "One-off", Start: start, End: start.Add(time.Hour)})

	for _, r := range [][2]time.Time{
		{date(2025, 1, 1), date(2025, 1, 31)},
		{date(2025, 1, 5), date(2025, 1, 6)},
		{date(2025, 1, 5).Add(10 * time.Hour), date(2025, 1, 5).Add(11 * time.Hour)},
	} {
		events, err := f.querier.EventsForRange(ctx, r[0], r[1], Filter{})
		require.NoError(t, err)

		type key struct {
			calendarID string
			start      time.Time
			title      string
		}
		seenKeys := map[key]bool{}
		seenIDs := map[string]bool{}
		for _, e := range events {
			k := key{e.CalendarID, e.Start.UTC(), e.Title}
			assert.False(t, seenKeys[k], "duplicate %v", k)
			assert.False(t, seenIDs[e.ID], "duplicate id %s", e.ID)
			seenKeys[k] = true
			seenIDs[e.ID] = true
			assert.True(t, e.Overlaps(r[0], r[1]))
			assert.False(t, e.IsSeriesMaster())
		}
	}
}

func TestEventsForRange_MultiDayOccurrenceStartingBeforeRange(t *testing.T) {
	f := newFixture(t)
	start := date(2025, 1, 6).Add(20 * time.Hour) // Monday evening
	seriesID := f.add(t, storage.Event{Title: "Night shift", Start: start, End: start.Add(12 * time.Hour),
		Kind: storage.SeriesMaster{Pattern: recurrence.Pattern{Frequency: recurrence.Weekly, Interval: 1}}})

	ids := f.rangeIDs(t, date(2025, 1, 14), date(2025, 1, 15), Filter{})
	assert.Equal(t, []string{seriesID + "-2025-01-13"}, ids)

	ids = f.rangeIDs(t, date(2025, 1, 14).Add(8*time.Hour), date(2025, 1, 15), Filter{})
	assert.Empty(t, ids, "occurrence ended exactly at range start")
}

func TestEventsForRange_Filters(t *testing.T) {
	f := newFixture(t)
	start := date(2025, 1, 6).Add(9 * time.Hour)
	workID := f.add(t, storage.Event{Title: "Meeting", CalendarID: "work", Category: storage.CategoryMeeting, Start: start, End: start.Add(time.Hour)})
	homeID := f.add(t, storage.Event{Title: "Gym", CalendarID: "home", Category: storage.CategoryPersonal, Start: start, End: start.Add(time.Hour), Kind: daily(1)})
	homeOcc := homeID + "-2025-01-06"

	a, b := date(2025, 1, 6), date(2025, 1, 7)
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"unrestricted", Filter{}, []string{homeOcc, workID}},
		{"active calendar", NewFilter([]string{"home"}, nil), []string{homeOcc}},
		{"category", NewFilter(nil, []storage.Category{storage.CategoryMeeting}), []string{workID}},
		{"both", NewFilter([]string{"home"}, []storage.Category{storage.CategoryMeeting}), []string{}},
		{"empty calendar set selects nothing", NewFilter([]string{}, nil), []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, f.rangeIDs(t, a, b, tt.filter))
		})
	}

	require.NoError(t, f.store.SetCalendarActive(ctx, "work", false))
	filter := FilterFromCalendars(f.store.Calendars(), nil)
	assert.Equal(t, []string{homeOcc}, f.rangeIDs(t, a, b, filter))
}

func TestEventsForRange_BadRanges(t *testing.T) {
	f := newFixture(t)
	start := date(2025, 1, 6).Add(13 * time.Hour)
	id := f.add(t, storage.Event{Title: "Now-ish", Start: start, End: start.Add(time.Hour)})

	assert.Empty(t, f.rangeIDs(t, date(2025, 1, 7), date(2025, 1, 6), Filter{}))
	assert.Empty(t, f.rangeIDs(t, date(2025, 1, 6), date(2025, 1, 6), Filter{}))
	// a zero start is coerced to now (12:00 on the fixture clock)
	assert.Equal(t, []string{id}, f.rangeIDs(t, time.Time{}, date(2025, 1, 7), Filter{}))
}

func TestEventsForDate(t *testing.T) {
	f := newFixture(t)
	start := date(2025, 1, 6).Add(9 * time.Hour)
	seriesID := f.add(t, storage.Event{Title: "Standup", Start: start, End: start.Add(15 * time.Minute), Kind: daily(1)})
	late := f.add(t, storage.Event{Title: "Late", Start: date(2025, 1, 6).Add(23 * time.Hour), End: date(2025, 1, 7).Add(time.Hour)})

	events, err := f.querier.EventsForDate(ctx, date(2025, 1, 7).Add(15*time.Hour), Filter{})
	require.NoError(t, err)
	Sort(events)
	require.Len(t, events, 2)
	assert.Equal(t, late, events[0].ID)
	assert.Equal(t, seriesID+"-2025-01-07", events[1].ID)

	// zero date means today on the fixture clock
	events, err = f.querier.EventsForDate(ctx, time.Time{}, Filter{})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestEventsForDate_ZeroLengthAtMidnight(t *testing.T) {
	f := newFixture(t)
	seriesID := f.add(t, storage.Event{Title: "Midnight", Start: date(2025, 1, 1), End: date(2025, 1, 1), Kind: daily(1)})
	pills := f.add(t, storage.Event{Title: "Pills", Start: date(2025, 1, 8), End: date(2025, 1, 8)})
	_, err := f.store.RescheduleEvent(ctx, seriesID+"-2025-01-05", date(2025, 1, 8))
	require.NoError(t, err)

	ids := func(d time.Time) []string {
		events, err := f.querier.EventsForDate(ctx, d, Filter{})
		require.NoError(t, err)
		Sort(events)
		out := make([]string, 0, len(events))
		for _, e := range events {
			out = append(out, e.ID)
		}
		return out
	}

	assert.Equal(t, []string{seriesID + "-2025-01-07"}, ids(date(2025, 1, 7)),
		"events at the next midnight belong to the next day")
	assert.Equal(t, []string{seriesID + "-2025-01-05", seriesID + "-2025-01-08", pills}, ids(date(2025, 1, 8)))
}

func TestEventsForRange_CancelledContext(t *testing.T) {
	f := newFixture(t)
	start := date(2025, 1, 6).Add(9 * time.Hour)
	f.add(t, storage.Event{Title: "Standup", Start: start, End: start, Kind: daily(1)})

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := f.querier.EventsForRange(cancelled, date(2025, 1, 6), date(2025, 1, 7), Filter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSort(t *testing.T) {
	at := date(2025, 1, 6)
	events := []storage.Event{
		storage.NewMockEvent("c", "w", "B", at, at),
		storage.NewMockEvent("b", "w", "A", at, at),
		storage.NewMockEvent("a", "w", "A", at, at),
		storage.NewMockEvent("z", "w", "Z", at.Add(-time.Hour), at),
	}
	Sort(events)
	var ids []string
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"z", "a", "b", "c"}, ids)
}
