// Package config loads the runtime configuration of the calendar CLI from
// the environment and an optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PascalChui/ingenius-plan-sub000/server/recurrence"
	"github.com/PascalChui/ingenius-plan-sub000/server/storage"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "CALENDAR"

type Runtime struct {
	ConfigFile string

	Database string
	Debug    bool
	LogLevel slog.Level
	User     string
	Location *time.Location

	// Lookahead is how far list/export reach when no end is given
	Lookahead time.Duration

	// nil means every category / every active calendar
	Categories      []storage.Category
	ActiveCalendars []string

	CacheEnabled   bool
	CacheSize      int
	CacheTTL       time.Duration
	MaxOccurrences int
}

// Load reads CALENDAR_* variables. Variables from the env file named by
// CALENDAR_CONFIG_FILE (default ".env") fill in what the environment
// doesn't set.
func Load() (Runtime, error) {
	configFile := strings.TrimSpace(os.Getenv(envPrefix + "_CONFIG_FILE"))
	if configFile == "" {
		configFile = ".env"
	}
	if err := loadEnvFile(configFile); err != nil {
		return Runtime{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	for _, key := range []string{"database", "debug", "log_level", "user", "timezone", "lookahead_days",
		"categories", "active_calendars", "cache_enabled", "cache_size", "cache_ttl_minutes", "max_occurrences"} {
		_ = v.BindEnv(key)
	}

	v.SetDefault("database", filepath.Join(".", "calendar.db"))
	v.SetDefault("debug", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("user", os.Getenv("USER"))
	v.SetDefault("timezone", "Local")
	v.SetDefault("lookahead_days", 7)
	v.SetDefault("cache_enabled", recurrence.DefaultEngineConfig.CacheEnabled)
	v.SetDefault("cache_size", recurrence.DefaultCacheConfig.MaxEntries)
	v.SetDefault("cache_ttl_minutes", int(recurrence.DefaultCacheConfig.TTL/time.Minute))
	v.SetDefault("max_occurrences", recurrence.DefaultEngineConfig.MaxOccurrences)

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return Runtime{}, fmt.Errorf("parse %s_LOG_LEVEL: %w", envPrefix, err)
	}

	loc, err := time.LoadLocation(strings.TrimSpace(v.GetString("timezone")))
	if err != nil {
		return Runtime{}, fmt.Errorf("parse %s_TIMEZONE: %w", envPrefix, err)
	}

	categories, err := parseCategories(v.GetString("categories"))
	if err != nil {
		return Runtime{}, fmt.Errorf("parse %s_CATEGORIES: %w", envPrefix, err)
	}

	lookaheadDays := v.GetInt("lookahead_days")
	if lookaheadDays <= 0 {
		lookaheadDays = 7
	}

	cacheSize := v.GetInt("cache_size")
	if cacheSize < 1 {
		cacheSize = recurrence.DefaultCacheConfig.MaxEntries
	}

	cacheTTL := v.GetInt("cache_ttl_minutes")
	if cacheTTL < 0 {
		cacheTTL = 0
	}

	maxOccurrences := v.GetInt("max_occurrences")
	if maxOccurrences < 0 {
		maxOccurrences = 0
	}

	database := strings.TrimSpace(v.GetString("database"))
	if database == "" {
		database = filepath.Join(".", "calendar.db")
	}

	return Runtime{
		ConfigFile:      configFile,
		Database:        database,
		Debug:           v.GetBool("debug"),
		LogLevel:        level,
		User:            strings.TrimSpace(v.GetString("user")),
		Location:        loc,
		Lookahead:       time.Duration(lookaheadDays) * 24 * time.Hour,
		Categories:      categories,
		ActiveCalendars: splitList(v.GetString("active_calendars")),
		CacheEnabled:    v.GetBool("cache_enabled"),
		CacheSize:       cacheSize,
		CacheTTL:        time.Duration(cacheTTL) * time.Minute,
		MaxOccurrences:  maxOccurrences,
	}, nil
}

// EngineConfig returns the recurrence engine settings
func (r Runtime) EngineConfig() recurrence.EngineConfig {
	return recurrence.EngineConfig{
		CacheEnabled: r.CacheEnabled,
		CacheConfig: recurrence.CacheConfig{
			TTL:        r.CacheTTL,
			MaxEntries: r.CacheSize,
		},
		MaxOccurrences: r.MaxOccurrences,
	}
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat env file %s: %w", path, err)
	}
	// Load never overrides variables that are already set
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func splitList(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseCategories(value string) ([]storage.Category, error) {
	parts := splitList(value)
	if parts == nil {
		return nil, nil
	}
	out := make([]storage.Category, 0, len(parts))
	for _, part := range parts {
		c, err := storage.ParseCategory(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
