package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"YOUTRACK_URL", "YOUTRACK_TOKEN", "PORT", "LOG_LEVEL", "MAX_CONCURRENCY",
		"HTTP_TIMEOUT", "RATE_LIMIT_RPS", "CALENDAR_FILE", "DAILY_MINUTES"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != 8080 || cfg.LogLevel != "info" || cfg.MaxConcurrency != 10 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.HTTPTimeout != 30*time.Second || cfg.RateLimitRPS != 0 || cfg.DailyMinutes != 480 {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should require YOUTRACK_URL")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("YOUTRACK_URL", "https://example.youtrack.cloud")
	t.Setenv("YOUTRACK_TOKEN", "perm:abc")
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_CONCURRENCY", "5")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("DAILY_MINUTES", "not-a-number")

	cfg := Load()
	if cfg.YouTrackURL != "https://example.youtrack.cloud" || cfg.YouTrackToken != "perm:abc" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Port != 9090 || cfg.MaxConcurrency != 5 || cfg.HTTPTimeout != 5*time.Second || cfg.RateLimitRPS != 2.5 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.DailyMinutes != 480 {
		t.Errorf("malformed DAILY_MINUTES should fall back to 480, got %d", cfg.DailyMinutes)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if got := len(cfg.ClientOptions()); got != 2 {
		t.Errorf("ClientOptions() returned %d options, want 2", got)
	}
	if client := cfg.NewClient("token"); client.BaseURL() != cfg.YouTrackURL {
		t.Errorf("client BaseURL = %q", client.BaseURL())
	}
}

func TestValidate(t *testing.T) {
	base := Config{YouTrackURL: "http://yt", MaxConcurrency: 10, DailyMinutes: 480}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"zero concurrency", func(c *Config) { c.MaxConcurrency = 0 }, true},
		{"zero daily minutes", func(c *Config) { c.DailyMinutes = 0 }, true},
		{"missing url", func(c *Config) { c.YouTrackURL = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_LoadCalendar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.json")
	if err := os.WriteFile(path, []byte(`{"holidays":["2024-12-25"]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	cal, err := Config{CalendarFile: path}.LoadCalendar()
	if err != nil || cal == nil || len(cal.Holidays) != 1 {
		t.Errorf("LoadCalendar() = %+v, %v", cal, err)
	}
}
