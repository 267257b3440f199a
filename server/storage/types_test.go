package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/PascalChui/ingenius-plan-sub000/server/recurrence"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("update: %w", NewError(ErrTypeNotFound, "event not found", nil))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrInvalidInput))

	var storageErr *Error
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, ErrTypeNotFound, storageErr.Type)

	cause := errors.New("boom")
	wrapped := NewError(ErrTypeInvalidInput, "bad pattern", cause)
	assert.ErrorIs(t, wrapped, cause)
	assert.ErrorIs(t, wrapped, ErrInvalidInput)
	assert.Equal(t, "invalid_input: bad pattern: boom", wrapped.Error())

	assert.ErrorIs(t, NewError(ErrTypeSeriesMaster, "x", nil), ErrSeriesMaster)
	assert.ErrorIs(t, NewError(ErrTypeAlreadyExists, "x", nil), ErrAlreadyExists)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Meeting ")
	require.NoError(t, err)
	assert.Equal(t, CategoryMeeting, c)

	c, err = ParseCategory("")
	require.NoError(t, err)
	assert.Equal(t, CategoryOther, c)

	_, err = ParseCategory("party")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEvent_KindAccessors(t *testing.T) {
	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	pattern := recurrence.Pattern{Frequency: recurrence.Daily, Interval: 1}

	standalone := NewMockEvent("a", "cal", "A", start, start.Add(time.Hour))
	assert.True(t, standalone.Recurrence().IsAbsent())
	assert.True(t, standalone.RecurrenceID().IsAbsent())
	assert.Equal(t, "standalone", KindName(standalone.Kind))
	assert.Equal(t, "standalone", KindName(nil))

	series := NewMockSeries("s", "cal", "S", start, start.Add(time.Hour), pattern)
	assert.True(t, series.IsSeriesMaster())
	assert.Equal(t, pattern, series.Recurrence().MustGet())
	assert.True(t, series.RecurrenceID().IsAbsent())

	occ := standalone
	occ.Kind = Occurrence{SeriesID: "s", OriginalStart: start, IsException: true}
	assert.True(t, occ.IsOccurrence())
	assert.True(t, occ.IsException())
	assert.Equal(t, "s", occ.RecurrenceID().MustGet())
	assert.True(t, occ.Recurrence().IsAbsent())
}

func TestEvent_CloneIsDeep(t *testing.T) {
	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	series := NewMockSeries("s", "cal", "S", start, start, recurrence.Pattern{
		Frequency:  recurrence.Weekly,
		Interval:   1,
		WeekDays:   []time.Weekday{time.Monday},
		Exceptions: []time.Time{start},
	})

	clone := series.Clone()
	clone.Kind.(SeriesMaster).Pattern.WeekDays[0] = time.Friday
	clone.Kind.(SeriesMaster).Pattern.Exceptions[0] = time.Time{}

	assert.Equal(t, time.Monday, series.Recurrence().MustGet().WeekDays[0])
	assert.Equal(t, start, series.Recurrence().MustGet().Exceptions[0])
}

func TestEvent_Overlaps(t *testing.T) {
	a := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	b := a.Add(24 * time.Hour)

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"inside", a.Add(time.Hour), a.Add(2 * time.Hour), true},
		{"starts within", a.Add(23 * time.Hour), b.Add(2 * time.Hour), true},
		{"ends within", a.Add(-2 * time.Hour), a.Add(time.Hour), true},
		{"spans", a.Add(-time.Hour), b.Add(time.Hour), true},
		{"zero length at start", a, a, true},
		{"ends at range start", a.Add(-time.Hour), a, false},
		{"starts at range end", b, b.Add(time.Hour), false},
		{"zero length at range end", b, b, false},
		{"zero length inside", a.Add(time.Hour), a.Add(time.Hour), true},
		{"before", a.Add(-3 * time.Hour), a.Add(-2 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewMockEvent("e", "cal", "E", tt.start, tt.end)
			assert.Equal(t, tt.want, e.Overlaps(a, b))
		})
	}
}

func TestEvent_Validate(t *testing.T) {
	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	valid := NewMockEvent("e", "cal", "E", start, start.Add(time.Hour))
	assert.NoError(t, valid.Validate())

	reversed := valid
	reversed.End = start.Add(-time.Hour)
	assert.ErrorIs(t, reversed.Validate(), ErrInvalidInput)

	noStart := valid
	noStart.Start = time.Time{}
	assert.ErrorIs(t, noStart.Validate(), ErrInvalidInput)

	badCategory := valid
	badCategory.Category = "party"
	assert.ErrorIs(t, badCategory.Validate(), ErrInvalidInput)

	badPattern := valid
	badPattern.Kind = SeriesMaster{Pattern: recurrence.Pattern{Frequency: recurrence.Daily}}
	err := badPattern.Validate()
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.ErrorIs(t, err, recurrence.ErrInvalidPattern)

	orphan := valid
	orphan.Kind = Occurrence{}
	assert.ErrorIs(t, orphan.Validate(), ErrInvalidInput)
}

func TestEventPatch_Apply(t *testing.T) {
	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	base := NewMockEvent("e", "cal", "Standup", start, start.Add(30*time.Minute))

	t.Run("Empty patch", func(t *testing.T) {
		assert.True(t, EventPatch{}.IsEmpty())
		out, err := EventPatch{}.Apply(base)
		require.NoError(t, err)
		assert.Equal(t, base, out)
	})

	t.Run("Moving start keeps duration", func(t *testing.T) {
		newStart := start.Add(2 * time.Hour)
		out, err := EventPatch{Start: mo.Some(newStart)}.Apply(base)
		require.NoError(t, err)
		assert.Equal(t, newStart, out.Start)
		assert.Equal(t, 30*time.Minute, out.Duration())
	})

	t.Run("Fields", func(t *testing.T) {
		out, err := EventPatch{
			Title:    mo.Some("Retro"),
			Location: mo.Some("Room 4"),
			Category: mo.Some(CategoryMeeting),
			End:      mo.Some(start.Add(time.Hour)),
		}.Apply(base)
		require.NoError(t, err)
		assert.Equal(t, "Retro", out.Title)
		assert.Equal(t, "Room 4", out.Location)
		assert.Equal(t, CategoryMeeting, out.Category)
		assert.Equal(t, time.Hour, out.Duration())
		assert.Equal(t, "Standup", base.Title)
	})

	t.Run("Invalid result leaves event untouched", func(t *testing.T) {
		out, err := EventPatch{End: mo.Some(start.Add(-time.Hour))}.Apply(base)
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.Equal(t, base, out)
	})

	t.Run("Recurrence turns standalone into series", func(t *testing.T) {
		out, err := EventPatch{Recurrence: mo.Some(recurrence.Pattern{Frequency: recurrence.Daily})}.Apply(base)
		require.NoError(t, err)
		require.True(t, out.IsSeriesMaster())
		assert.Equal(t, 1, out.Recurrence().MustGet().Interval)
	})

	t.Run("Recurrence rejected on occurrence", func(t *testing.T) {
		occ := base
		occ.Kind = Occurrence{SeriesID: "s", OriginalStart: start}
		_, err := EventPatch{Recurrence: mo.Some(recurrence.Pattern{Frequency: recurrence.Daily, Interval: 1})}.Apply(occ)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
