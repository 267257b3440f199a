package recurrence

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheEntry represents a cached expansion result
type cacheEntry struct {
	occurrences []TimeOccurrence
	expiresAt   time.Time // zero means no expiry
}

// RecurrenceCache memoizes expansion results. It is a bounded LRU with
// lazy TTL checks; nothing runs in the background.
type RecurrenceCache struct {
	entries *lru.Cache[string, cacheEntry]
	ttl     time.Duration
	now     func() time.Time

	hits   atomic.Uint64
	misses atomic.Uint64
}

// CacheConfig holds configuration for the recurrence cache
type CacheConfig struct {
	TTL        time.Duration // How long entries stay valid (0 = until evicted)
	MaxEntries int           // LRU capacity
}

// DefaultCacheConfig provides sensible defaults for recurrence caching
var DefaultCacheConfig = CacheConfig{
	TTL:        15 * time.Minute,
	MaxEntries: 1000,
}

// NewRecurrenceCache creates a new recurrence cache with the given configuration
func NewRecurrenceCache(config CacheConfig) (*RecurrenceCache, error) {
	entries, err := lru.New[string, cacheEntry](config.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &RecurrenceCache{
		entries: entries,
		ttl:     config.TTL,
		now:     time.Now,
	}, nil
}

// cacheKey hashes every input that influences an expansion. The pattern's
// exception set is part of the key, so detaching an occurrence can never
// serve a stale result.
func cacheKey(anchorStart, anchorEnd time.Time, p Pattern, rangeStart, rangeEnd time.Time) string {
	hasher := sha256.New()

	write := func(s string) {
		hasher.Write([]byte(s))
		hasher.Write([]byte{0})
	}
	writeTime := func(t time.Time) {
		write(t.Format(time.RFC3339Nano))
		write(t.Location().String())
	}

	writeTime(anchorStart)
	writeTime(anchorEnd)
	writeTime(rangeStart)
	writeTime(rangeEnd)

	write(string(p.Frequency))
	write(strconv.Itoa(p.Interval))
	for _, day := range p.WeekDays {
		write(WeekdayCode(day))
	}
	write("|")
	if v, ok := p.MonthDay.Get(); ok {
		write("md" + strconv.Itoa(v))
	}
	if v, ok := p.MonthWeek.Get(); ok {
		write("mw" + strconv.Itoa(v))
	}
	if v, ok := p.MonthWeekDay.Get(); ok {
		write("mwd" + WeekdayCode(v))
	}
	if v, ok := p.EndDate.Get(); ok {
		write("end" + DateKey(v))
	}
	if v, ok := p.Count.Get(); ok {
		write("count" + strconv.Itoa(v))
	}
	for _, ex := range p.Exceptions {
		write("ex" + DateKey(ex))
	}

	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// Get retrieves a copy of a cached result if it exists and hasn't expired
func (c *RecurrenceCache) Get(key string) ([]TimeOccurrence, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.entries.Remove(key)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return cloneOccurrences(entry.occurrences), true
}

// Set stores a copy of occurrences in the cache
func (c *RecurrenceCache) Set(key string, occurrences []TimeOccurrence) {
	entry := cacheEntry{occurrences: cloneOccurrences(occurrences)}
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}
	c.entries.Add(key, entry)
}

// Purge drops every cached entry
func (c *RecurrenceCache) Purge() {
	c.entries.Purge()
}

// Stats returns cache statistics
func (c *RecurrenceCache) Stats() CacheStats {
	return CacheStats{
		Entries: c.entries.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// CacheStats provides information about cache performance
type CacheStats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

func cloneOccurrences(in []TimeOccurrence) []TimeOccurrence {
	if in == nil {
		return nil
	}
	return append([]TimeOccurrence(nil), in...)
}
