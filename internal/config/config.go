// Package config reads server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ycho/youtrack-mcp-server/internal/batch"
	"github.com/ycho/youtrack-mcp-server/internal/workreport"
	"github.com/ycho/youtrack-mcp-server/internal/youtrack"
)

// Config holds settings shared by every command
type Config struct {
	YouTrackURL   string
	YouTrackToken string
	Port          int
	LogLevel      string

	MaxConcurrency int
	HTTPTimeout    time.Duration
	RateLimitRPS   float64

	CalendarFile string
	DailyMinutes int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoi(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func atof(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func dur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Load reads the configuration from environment variables, falling back to
// defaults for anything unset or malformed.
func Load() Config {
	return Config{
		YouTrackURL:   getenv("YOUTRACK_URL", ""),
		YouTrackToken: getenv("YOUTRACK_TOKEN", ""),
		Port:          atoi("PORT", 8080),
		LogLevel:      getenv("LOG_LEVEL", "info"),

		MaxConcurrency: atoi("MAX_CONCURRENCY", batch.DefaultLimit),
		HTTPTimeout:    dur("HTTP_TIMEOUT", 30*time.Second),
		RateLimitRPS:   atof("RATE_LIMIT_RPS", 0),

		CalendarFile: getenv("CALENDAR_FILE", "calendar.json"),
		DailyMinutes: atoi("DAILY_MINUTES", workreport.DefaultDailyMinutes),
	}
}

// Validate checks settings every command needs.
func (c Config) Validate() error {
	if c.YouTrackURL == "" {
		return fmt.Errorf("YOUTRACK_URL is required (set via --youtrack-url or YOUTRACK_URL env var)")
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("MAX_CONCURRENCY must be positive, got %d", c.MaxConcurrency)
	}
	if c.DailyMinutes <= 0 {
		return fmt.Errorf("DAILY_MINUTES must be positive, got %d", c.DailyMinutes)
	}
	return nil
}

// ClientOptions returns the YouTrack client options implied by c.
func (c Config) ClientOptions() []youtrack.Option {
	opts := []youtrack.Option{youtrack.WithTimeout(c.HTTPTimeout)}
	if c.RateLimitRPS > 0 {
		opts = append(opts, youtrack.WithRateLimit(c.RateLimitRPS, int(c.RateLimitRPS)+1))
	}
	return opts
}

// NewClient creates a YouTrack client for token using c's transport settings.
func (c Config) NewClient(token string) *youtrack.Client {
	return youtrack.NewClient(c.YouTrackURL, token, c.ClientOptions()...)
}

// LoadCalendar loads the holiday calendar file, if any.
func (c Config) LoadCalendar() (*workreport.Calendar, error) {
	return workreport.LoadCalendar(c.CalendarFile)
}
