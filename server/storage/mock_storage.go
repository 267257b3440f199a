package storage

import (
	"context"
	"time"

	"github.com/PascalChui/ingenius-plan-sub000/server/recurrence"
	"github.com/stretchr/testify/mock"
)

// MockPersister implements the Persister interface for testing
type MockPersister struct {
	mock.Mock
}

// SaveEvents implements the Persister interface
func (m *MockPersister) SaveEvents(ctx context.Context, events ...Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// DeleteEvents implements the Persister interface
func (m *MockPersister) DeleteEvents(ctx context.Context, ids ...string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

// SaveCalendars implements the Persister interface
func (m *MockPersister) SaveCalendars(ctx context.Context, calendars ...Calendar) error {
	args := m.Called(ctx, calendars)
	return args.Error(0)
}

// --- Helper methods for creating test data ---

// NewMockEvent creates a standalone test event
func NewMockEvent(id, calendarID, title string, start, end time.Time) Event {
	return Event{
		ID:         id,
		CalendarID: calendarID,
		Title:      title,
		Category:   CategoryOther,
		Start:      start,
		End:        end,
		Kind:       Standalone{},
		CreatedAt:  start,
		CreatedBy:  "test",
	}
}

// NewMockSeries creates a test series master anchored at start
func NewMockSeries(id, calendarID, title string, start, end time.Time, pattern recurrence.Pattern) Event {
	e := NewMockEvent(id, calendarID, title, start, end)
	e.Kind = SeriesMaster{Pattern: pattern}
	return e
}
