package recurrence

import (
	"io"
	"log/slog"
	"time"

	"github.com/PascalChui/ingenius-plan-sub000/internal/metric"
)

// Engine expands recurrence patterns into concrete occurrences. It is
// stateless apart from its optional cache, so one Engine can serve any
// number of stores and queries.
type Engine struct {
	cache   *RecurrenceCache
	config  EngineConfig
	logger  *slog.Logger
	metrics *metric.Metrics
}

// Option represents a configuration option for the Engine
type Option func(*Engine)

// WithLogger sets the logger for the engine
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records expansion and cache metrics
func WithMetrics(m *metric.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates a recurrence engine with DefaultEngineConfig
func NewEngine(opts ...Option) *Engine {
	return NewEngineWithConfig(DefaultEngineConfig, opts...)
}

func newEngine(config EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache exposes the engine's cache, nil when caching is disabled
func (e *Engine) Cache() *RecurrenceCache {
	return e.cache
}

// Occurrences expands the series anchored at [anchorStart, anchorEnd) over
// the civil days from the day containing rangeStart up to (excluding)
// rangeEnd. Each occurrence starts at the anchor's time-of-day and keeps
// the anchor's duration. Detached dates are skipped; Count is counted from
// the anchor with detached dates included. The result is ordered by start
// and identical for identical input.
func (e *Engine) Occurrences(anchorStart, anchorEnd time.Time, p Pattern, rangeStart, rangeEnd time.Time) []TimeOccurrence {
	if anchorStart.IsZero() || rangeStart.IsZero() || rangeEnd.IsZero() || !rangeStart.Before(rangeEnd) {
		return nil
	}
	if err := p.Validate(); err != nil {
		e.logger.Warn("skipping expansion of invalid pattern", "error", err)
		return nil
	}

	var key string
	if e.cache != nil {
		key = cacheKey(anchorStart, anchorEnd, p, rangeStart, rangeEnd)
		if cached, ok := e.cache.Get(key); ok {
			e.metrics.CacheHit()
			return cached
		}
		e.metrics.CacheMiss()
	}

	occurrences, truncated := e.expand(anchorStart, anchorEnd, p, rangeStart, rangeEnd)
	e.metrics.ObserveExpansion(len(occurrences), truncated)
	if truncated {
		e.logger.Warn("expansion truncated by occurrence cap",
			"anchor", anchorStart,
			"cap", e.config.MaxOccurrences,
			"range_start", rangeStart,
			"range_end", rangeEnd)
	}

	if e.cache != nil {
		e.cache.Set(key, occurrences)
	}
	return occurrences
}

func (e *Engine) expand(anchorStart, anchorEnd time.Time, p Pattern, rangeStart, rangeEnd time.Time) ([]TimeOccurrence, bool) {
	loc := anchorStart.Location()
	duration := anchorEnd.Sub(anchorStart)
	if duration < 0 {
		duration = 0
	}

	anchorN := dayNumber(anchorStart)
	firstN := dayNumber(rangeStart.In(loc))
	if firstN < anchorN {
		firstN = anchorN
	}

	// with a count the ordinal of each match matters, so walk from the anchor
	walkN := firstN
	count, hasCount := p.Count.Get()
	if hasCount {
		walkN = anchorN
	}

	// last civil day that starts before rangeEnd
	endInLoc := rangeEnd.In(loc)
	lastN := dayNumber(endInLoc)
	if endInLoc.Equal(civilDate(endInLoc)) {
		lastN--
	}
	if end, ok := p.endDay(); ok && end < lastN {
		lastN = end
	}
	if lastN < walkN {
		return nil, false
	}

	var out []TimeOccurrence
	matched := 0
	for n := walkN; n <= lastN; n++ {
		day := dayFromNumber(n, loc)
		if !Matches(day, anchorStart, p) {
			continue
		}
		matched++
		if hasCount && matched > count {
			break
		}
		if n < firstN || p.IsException(day) {
			continue
		}
		if e.config.MaxOccurrences > 0 && len(out) >= e.config.MaxOccurrences {
			return out, true
		}
		start := atTimeOfDay(day, anchorStart)
		out = append(out, TimeOccurrence{
			Start: start,
			End:   start.Add(duration),
			Day:   day,
		})
	}
	return out, false
}

// IsOccurrence reports whether the civil date of day (in the anchor's
// location) is a live occurrence of the series: it matches the pattern,
// is within Count and has not been detached.
func (e *Engine) IsOccurrence(anchorStart time.Time, p Pattern, day time.Time) bool {
	if day.IsZero() || anchorStart.IsZero() || p.Validate() != nil {
		return false
	}
	day = civilDate(day.In(anchorStart.Location()))
	occurrences, _ := e.expand(anchorStart, anchorStart, p, day, day.AddDate(0, 0, 1))
	return len(occurrences) == 1
}

// HasOccurrenceInRange checks whether the series has any live occurrence
// whose start falls on a civil day within the range
func (e *Engine) HasOccurrenceInRange(anchorStart, anchorEnd time.Time, p Pattern, rangeStart, rangeEnd time.Time) bool {
	return len(e.Occurrences(anchorStart, anchorEnd, p, rangeStart, rangeEnd)) > 0
}
