package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/PascalChui/ingenius-plan-sub000/internal/config"
	"github.com/PascalChui/ingenius-plan-sub000/internal/seed"
	"github.com/PascalChui/ingenius-plan-sub000/server/query"
	"github.com/PascalChui/ingenius-plan-sub000/server/storage"
	"github.com/PascalChui/ingenius-plan-sub000/server/storage/memory"
)

const usage = `usage: calendar [flags] <command> [args]

commands:
  seed FILE              add the calendars and events of a YAML file
  list [FROM [TO]]       print the events between FROM and TO
  export [FROM [TO]]     print the events between FROM and TO as iCalendar
  delete ID              delete an event or a single occurrence
  delete-series ID       delete a series with all its exceptions
  reschedule ID WHEN     move an event or a single occurrence`

var errUsage = errors.New(usage)

type app struct {
	store   *memory.Store
	querier *query.Querier
	cfg     config.Runtime
	dates   *dateParser
	out     io.Writer
	format  string
	now     func() time.Time
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "seed":
		if len(args) != 1 {
			return errUsage
		}
		return a.seed(ctx, args[0])
	case "list", "export":
		if len(args) > 2 {
			return errUsage
		}
		events, err := a.events(ctx, args)
		if err != nil {
			return err
		}
		if cmd == "export" {
			return storage.EncodeICS(a.out, events)
		}
		return writeEvents(a.out, a.format, events)
	case "delete":
		if len(args) != 1 {
			return errUsage
		}
		return a.store.DeleteEvent(ctx, args[0])
	case "delete-series":
		if len(args) != 1 {
			return errUsage
		}
		ids, err := a.store.DeleteSeries(ctx, args[0])
		if err != nil {
			return err
		}
		return writeLines(a.out, ids)
	case "reschedule":
		if len(args) != 2 {
			return errUsage
		}
		return a.reschedule(ctx, args[0], args[1])
	default:
		return fmt.Errorf("unknown command %q\n%w", cmd, errUsage)
	}
}

func (a *app) seed(ctx context.Context, path string) error {
	f, err := seed.ReadFile(path)
	if err != nil {
		return err
	}
	ids, err := f.Apply(ctx, a.store, a.cfg.Location)
	if err != nil {
		return err
	}
	return writeLines(a.out, ids)
}

func (a *app) events(ctx context.Context, args []string) ([]storage.Event, error) {
	from, to, err := a.dates.bounds(args, a.now(), a.cfg.Lookahead)
	if err != nil {
		return nil, err
	}
	events, err := a.querier.EventsForRange(ctx, from, to, a.filter())
	if err != nil {
		return nil, err
	}
	query.Sort(events)
	return events, nil
}

func (a *app) filter() query.Filter {
	if a.cfg.ActiveCalendars != nil {
		return query.NewFilter(a.cfg.ActiveCalendars, a.cfg.Categories)
	}
	return query.FilterFromCalendars(a.store.Calendars(), a.cfg.Categories)
}

// reschedule moves id to when. A plain date keeps the event's time of day.
func (a *app) reschedule(ctx context.Context, id, when string) error {
	current, err := a.store.Get(id)
	if err != nil {
		return err
	}
	start, wholeDay, err := a.dates.parse(when, a.now())
	if err != nil {
		return err
	}
	if wholeDay {
		old := current.Start.In(a.dates.loc)
		start = time.Date(start.Year(), start.Month(), start.Day(),
			old.Hour(), old.Minute(), old.Second(), 0, a.dates.loc)
	}

	e, err := a.store.RescheduleEvent(ctx, id, start)
	if err != nil {
		return err
	}
	return writeEvents(a.out, a.format, []storage.Event{e})
}
