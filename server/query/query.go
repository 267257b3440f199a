// Package query answers read-only "what happens when" questions over an
// event store, expanding series into their occurrences.
package query

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/PascalChui/ingenius-plan-sub000/server/recurrence"
	"github.com/PascalChui/ingenius-plan-sub000/server/storage"
)

// Source provides a consistent view of stored events and calendars
type Source interface {
	Snapshot() storage.Snapshot
}

// Querier combines stored events with series expansions
type Querier struct {
	source Source
	engine *recurrence.Engine
	logger *slog.Logger
	now    func() time.Time
}

// Option represents a configuration option for the Querier
type Option func(*Querier)

// WithLogger sets the logger for the querier
func WithLogger(logger *slog.Logger) Option {
	return func(q *Querier) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithEngine sets the engine series are expanded with. Share the store's
// engine to share its cache.
func WithEngine(engine *recurrence.Engine) Option {
	return func(q *Querier) {
		if engine != nil {
			q.engine = engine
		}
	}
}

// WithClock replaces time.Now, used in place of zero dates
func WithClock(now func() time.Time) Option {
	return func(q *Querier) {
		if now != nil {
			q.now = now
		}
	}
}

// New creates a querier over source
func New(source Source, opts ...Option) *Querier {
	q := &Querier{
		source: source,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.engine == nil {
		q.engine = recurrence.NewEngine(recurrence.WithLogger(q.logger))
	}
	return q
}

// EventsForDate returns the events overlapping the civil day of d, in d's
// location. A zero d means today.
func (q *Querier) EventsForDate(ctx context.Context, d time.Time, filter Filter) ([]storage.Event, error) {
	if d.IsZero() {
		q.logger.Warn("zero date in query, using now")
		d = q.now()
	}
	y, m, day := d.Date()
	start := time.Date(y, m, day, 0, 0, 0, 0, d.Location())
	return q.EventsForRange(ctx, start, start.AddDate(0, 0, 1), filter)
}

// EventsForRange returns every event overlapping [a, b): standalone events,
// persisted exceptions and generated occurrences of series, each at most
// once. A zero bound means now; a reversed range yields nothing. The result
// is in no particular order; see Sort.
func (q *Querier) EventsForRange(ctx context.Context, a, b time.Time, filter Filter) ([]storage.Event, error) {
	if a.IsZero() || b.IsZero() {
		q.logger.Warn("zero bound in range query, using now", "start", a, "end", b)
		if a.IsZero() {
			a = q.now()
		}
		if b.IsZero() {
			b = q.now()
		}
	}
	if !a.Before(b) {
		return nil, nil
	}

	snapshot := q.source.Snapshot()
	var (
		out  []storage.Event
		seen = make(map[string]struct{})
	)
	add := func(e storage.Event) {
		if _, dup := seen[e.ID]; dup {
			return
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}

	// stored records first, so a persisted exception shadows the
	// occurrence generated for the same date
	var series []storage.Event
	for _, e := range snapshot.Events {
		// an exception hides its original slot even when it is moved out
		// of the range or filtered out
		if e.IsOccurrence() {
			seen[e.ID] = struct{}{}
		}
		if !filter.Allows(e.CalendarID, e.Category) {
			continue
		}
		if e.IsSeriesMaster() {
			series = append(series, e)
			continue
		}
		if e.Overlaps(a, b) {
			out = append(out, e)
		}
	}

	for _, s := range series {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// start earlier by the series duration so occurrences running
		// into the range are generated too
		for _, occ := range storage.Materialize(q.engine, s, a.Add(-s.Duration()), b) {
			if occ.Overlaps(a, b) {
				add(occ)
			}
		}
	}
	return out, nil
}

// Sort orders events by start, then title, then id
func Sort(events []storage.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		if events[i].Title != events[j].Title {
			return events[i].Title < events[j].Title
		}
		return events[i].ID < events[j].ID
	})
}
