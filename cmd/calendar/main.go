// Command calendar manages a personal calendar kept in a SQLite database.
//
//	calendar [flags] seed FILE
//	calendar [flags] list [FROM [TO]]
//	calendar [flags] export [FROM [TO]]
//	calendar [flags] delete ID
//	calendar [flags] delete-series ID
//	calendar [flags] reschedule ID WHEN
//
// Settings come from CALENDAR_* environment variables and an optional .env
// file; flags override them.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/PascalChui/ingenius-plan-sub000/internal/config"
	"github.com/PascalChui/ingenius-plan-sub000/internal/metric"
	"github.com/PascalChui/ingenius-plan-sub000/server/query"
	"github.com/PascalChui/ingenius-plan-sub000/server/recurrence"
	"github.com/PascalChui/ingenius-plan-sub000/server/storage/memory"
	"github.com/PascalChui/ingenius-plan-sub000/server/storage/sqlite"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("calendar failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := pflag.NewFlagSet("calendar", pflag.ContinueOnError)
	flags.StringVar(&cfg.Database, "db", cfg.Database, "SQLite database file")
	flags.BoolVar(&cfg.Debug, "debug", cfg.Debug, "log debug messages and SQL queries")
	format := flags.StringP("format", "f", formatJSON, "list output: json or text")
	showMetrics := flags.Bool("metrics", false, "print collected metrics to stderr on exit")
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	level := cfg.LogLevel
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC1123Z,
	}))
	slog.SetDefault(logger)
	logger.Debug("config loaded", "config_file", cfg.ConfigFile, "database", cfg.Database)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := sqlite.Open(cfg.Database, cfg.Debug)
	if err != nil {
		return err
	}
	defer db.Close()

	persister := sqlite.New(db, sqlite.WithLogger(logger))
	if err := persister.CreateSchema(ctx); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := metric.New(reg, metric.WithLogger(logger))
	engine := recurrence.NewEngineWithConfig(cfg.EngineConfig(),
		recurrence.WithLogger(logger),
		recurrence.WithMetrics(metrics),
	)
	store := memory.New(
		memory.WithLogger(logger),
		memory.WithEngine(engine),
		memory.WithUser(cfg.User),
		memory.WithMetrics(metrics),
		memory.WithPersister(persister),
	)
	if err := persister.LoadInto(ctx, store); err != nil {
		return fmt.Errorf("load database: %w", err)
	}

	a := &app{
		store:   store,
		querier: query.New(store, query.WithLogger(logger), query.WithEngine(engine)),
		cfg:     cfg,
		dates:   newDateParser(cfg.Location),
		out:     os.Stdout,
		format:  *format,
		now:     time.Now,
	}
	err = a.run(ctx, flags.Args())

	if *showMetrics {
		if merr := writeMetrics(os.Stderr, reg); merr != nil {
			logger.Warn("can't write metrics", "error", merr)
		}
	}
	return err
}
