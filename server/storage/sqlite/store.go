// Package sqlite persists event store state to SQLite through bun. It is a
// write-behind mirror: the memory store stays authoritative and calls in
// after each mutation.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/PascalChui/ingenius-plan-sub000/server/storage"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// Store implements storage.Persister and storage.Loader on a bun database
type Store struct {
	db     *bun.DB
	logger *slog.Logger
}

var (
	_ storage.Persister = (*Store)(nil)
	_ storage.Loader    = (*Store)(nil)
)

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

// Open opens (creating if needed) the SQLite database at dsn. With debug
// set every query is logged to stderr; BUNDEBUG in the environment
// overrides it.
func Open(dsn string, debug bool) (*bun.DB, error) {
	raw, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer; a second connection to ":memory:" would be a new database
	raw.SetMaxOpenConns(1)

	db := bun.NewDB(raw, sqlitedialect.New())
	db.AddQueryHook(bundebug.NewQueryHook(
		bundebug.WithEnabled(debug),
		bundebug.WithVerbose(debug),
		bundebug.FromEnv("BUNDEBUG"),
	))
	return db, nil
}

// New wraps db. Call CreateSchema once before use.
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSchema creates the tables that don't exist yet
func (s *Store) CreateSchema(ctx context.Context) error {
	if err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range []interface{}{
			(*CalendarRow)(nil),
			(*EventRow)(nil),
		} {
			if _, err := tx.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx); err != nil {
				return err
			}
		}
		if _, err := tx.NewCreateIndex().
			Model((*EventRow)(nil)).
			Index("events_recurrence_id_idx").
			IfNotExists().
			Column("recurrence_id").
			Exec(ctx); err != nil {
			return err
		}
		return nil
	}); err != nil {
		return fmt.Errorf("CreateSchema: %w", err)
	}
	return nil
}

// SaveEvents upserts events by id in one transaction
func (s *Store) SaveEvents(ctx context.Context, events ...storage.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]EventRow, len(events))
	for i, e := range events {
		if err := rows[i].FromEvent(e); err != nil {
			return fmt.Errorf("SaveEvents: %w", err)
		}
	}

	if _, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("calendar_id = EXCLUDED.calendar_id").
		Set("title = EXCLUDED.title").
		Set("description = EXCLUDED.description").
		Set("location = EXCLUDED.location").
		Set("category = EXCLUDED.category").
		Set("start_date = EXCLUDED.start_date").
		Set("end_date = EXCLUDED.end_date").
		Set("time_zone = EXCLUDED.time_zone").
		Set("all_day = EXCLUDED.all_day").
		Set("kind = EXCLUDED.kind").
		Set("rrule = EXCLUDED.rrule").
		Set("exdate = EXCLUDED.exdate").
		Set("recurrence_id = EXCLUDED.recurrence_id").
		Set("original_start = EXCLUDED.original_start").
		Set("is_exception = EXCLUDED.is_exception").
		Set("created_at = EXCLUDED.created_at").
		Set("updated_at = EXCLUDED.updated_at").
		Set("created_by = EXCLUDED.created_by").
		Exec(ctx); err != nil {
		return fmt.Errorf("SaveEvents: %w", err)
	}
	s.logger.Debug("events saved", "count", len(rows))
	return nil
}

// DeleteEvents removes events by id
func (s *Store) DeleteEvents(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.NewDelete().
		Model((*EventRow)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx); err != nil {
		return fmt.Errorf("DeleteEvents: %w", err)
	}
	s.logger.Debug("events deleted", "ids", ids)
	return nil
}

// SaveCalendars upserts calendars by id
func (s *Store) SaveCalendars(ctx context.Context, calendars ...storage.Calendar) error {
	if len(calendars) == 0 {
		return nil
	}
	rows := make([]CalendarRow, len(calendars))
	for i, c := range calendars {
		rows[i] = calendarRow(c)
	}

	if _, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("color = EXCLUDED.color").
		Set("active = EXCLUDED.active").
		Exec(ctx); err != nil {
		return fmt.Errorf("SaveCalendars: %w", err)
	}
	return nil
}

// LoadEvents reads every stored event. Rows that can't be decoded are
// logged and skipped.
func (s *Store) LoadEvents(ctx context.Context) ([]storage.Event, error) {
	var rows []EventRow
	if err := s.db.NewSelect().
		Model(&rows).
		Order("start_date", "id").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("LoadEvents: %w", err)
	}

	events := make([]storage.Event, 0, len(rows))
	for i := range rows {
		e, err := rows[i].ToEvent()
		if err != nil {
			s.logger.Warn("skipping undecodable event row", "event_id", rows[i].ID, "error", err)
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// LoadCalendars reads every stored calendar in the order it was first saved
func (s *Store) LoadCalendars(ctx context.Context) ([]storage.Calendar, error) {
	var rows []CalendarRow
	if err := s.db.NewSelect().
		Model(&rows).
		OrderExpr("rowid").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("LoadCalendars: %w", err)
	}

	calendars := make([]storage.Calendar, 0, len(rows))
	for _, r := range rows {
		calendars = append(calendars, r.toCalendar())
	}
	return calendars, nil
}

// LoadInto installs the persisted state into target
func (s *Store) LoadInto(ctx context.Context, target interface {
	Load([]storage.Event, []storage.Calendar) error
}) error {
	calendars, err := s.LoadCalendars(ctx)
	if err != nil {
		return err
	}
	events, err := s.LoadEvents(ctx)
	if err != nil {
		return err
	}
	return target.Load(events, calendars)
}
