package storage

import (
	"context"
	"time"

	"github.com/PascalChui/ingenius-plan-sub000/server/recurrence"
)

// Persister mirrors committed store state into durable storage. The store
// calls it after each mutation, outside its lock; the store itself stays
// authoritative, so a failing Persister only loses durability.
type Persister interface {
	// SaveEvents inserts or replaces events by id.
	SaveEvents(ctx context.Context, events ...Event) error
	// DeleteEvents removes events by id. Unknown ids are ignored.
	DeleteEvents(ctx context.Context, ids ...string) error
	// SaveCalendars inserts or replaces calendars by id.
	SaveCalendars(ctx context.Context, calendars ...Calendar) error
}

// Loader reads back what a Persister wrote.
type Loader interface {
	LoadEvents(ctx context.Context) ([]Event, error)
	LoadCalendars(ctx context.Context) ([]Calendar, error)
}

const occurrenceSuffixLen = len("-2006-01-02")

// OccurrenceID derives the id of the occurrence of a series generated for
// originalStart's civil date. The same date always yields the same id.
func OccurrenceID(seriesID string, originalStart time.Time) string {
	return seriesID + "-" + recurrence.DateKey(originalStart)
}

// ParseOccurrenceID splits a derived occurrence id into its series id and
// the civil date (as midnight UTC). Series ids may themselves contain '-',
// so the date is always read from the end.
func ParseOccurrenceID(id string) (seriesID string, day time.Time, ok bool) {
	if len(id) <= occurrenceSuffixLen || id[len(id)-occurrenceSuffixLen] != '-' {
		return "", time.Time{}, false
	}
	day, err := time.Parse("2006-01-02", id[len(id)-occurrenceSuffixLen+1:])
	if err != nil {
		return "", time.Time{}, false
	}
	return id[:len(id)-occurrenceSuffixLen], day, true
}

// Snapshot is a consistent copy of a store's state, taken under one lock.
type Snapshot struct {
	Events    []Event
	Calendars []Calendar
}

// ActiveCalendarIDs returns the ids of the snapshot's active calendars.
func (s Snapshot) ActiveCalendarIDs() []string {
	var ids []string
	for _, c := range s.Calendars {
		if c.Active {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
