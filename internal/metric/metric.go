// Package metric holds the Prometheus collectors of the calendar engine.
// A nil *Metrics is valid and records nothing.
package metric

import (
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "calendar"

// Mutation results
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultInvalid  = "invalid"
)

type Metrics struct {
	expansions    prometheus.Counter
	occurrences   prometheus.Histogram
	truncations   prometheus.Counter
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	mutations     *prometheus.CounterVec
	storedEvents  prometheus.Gauge
	persistErrors prometheus.Counter
}

// Option represents a configuration option for New
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger registration failures are reported to
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates the collectors and registers them on reg. A collector that
// is already registered is reused, so New may be called more than once
// against the same registry. A collector that can't be registered still
// counts but isn't exported.
func New(reg prometheus.Registerer, opts ...Option) *Metrics {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Metrics{
		expansions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansions_total",
			Help:      "Number of series expansions computed (cache misses included, hits excluded)",
		}),
		occurrences: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "expansion_occurrences",
			Help:      "Occurrences produced by a single series expansion",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		truncations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansion_truncations_total",
			Help:      "Expansions cut short by the occurrence cap",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansion_cache_hits_total",
			Help:      "Expansion cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansion_cache_misses_total",
			Help:      "Expansion cache misses",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_mutations_total",
			Help:      "Event store mutations by operation and result",
		}, []string{"op", "result"}),
		storedEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_events",
			Help:      "Records held by the event store (standalone, series masters and persisted exceptions)",
		}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Write-behind persistence failures",
		}),
	}

	if reg == nil {
		return m
	}

	m.expansions = register(reg, o.logger, m.expansions)
	m.occurrences = register(reg, o.logger, m.occurrences)
	m.truncations = register(reg, o.logger, m.truncations)
	m.cacheHits = register(reg, o.logger, m.cacheHits)
	m.cacheMisses = register(reg, o.logger, m.cacheMisses)
	m.mutations = register(reg, o.logger, m.mutations)
	m.storedEvents = register(reg, o.logger, m.storedEvents)
	m.persistErrors = register(reg, o.logger, m.persistErrors)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, logger *slog.Logger, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		logger.Error("can't register metric", "error", err)
	}
	return c
}

func (m *Metrics) ObserveExpansion(occurrences int, truncated bool) {
	if m == nil {
		return
	}
	m.expansions.Inc()
	m.occurrences.Observe(float64(occurrences))
	if truncated {
		m.truncations.Inc()
	}
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// Mutation counts one store operation with its result
func (m *Metrics) Mutation(op, result string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) SetStoredEvents(n int) {
	if m == nil {
		return
	}
	m.storedEvents.Set(float64(n))
}

func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.persistErrors.Inc()
}
