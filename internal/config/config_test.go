package config

import (
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Port:            "8082",
		SQLiteDBPath:    filepath.Join(t.TempDir(), "skoglogg.db"),
		ReportCacheSize: 16,
		ReportCacheTTL:  30 * time.Second,
		LogLevel:        "info",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000",
		},
		{
			name:        "empty db path",
			mutate:      func(c *Config) { c.SQLiteDBPath = "" },
			wantErr:     true,
			errorString: "SQLite database path cannot be empty",
		},
		{
			name:        "zero cache size",
			mutate:      func(c *Config) { c.ReportCacheSize = 0 },
			wantErr:     true,
			errorString: "invalid report cache size",
		},
		{
			name:        "negative cache TTL",
			mutate:      func(c *Config) { c.ReportCacheTTL = -time.Second },
			wantErr:     true,
			errorString: "invalid report cache TTL",
		},
		{
			name:        "unknown log level",
			mutate:      func(c *Config) { c.LogLevel = "verbose" },
			wantErr:     true,
			errorString: "invalid log level 'verbose'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Validate() = nil, want error")
				}
				if !strings.Contains(err.Error(), tt.errorString) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errorString)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestConfig_SlogLevel(t *testing.T) {
	cfg := validConfig(t)

	cfg.LogLevel = "debug"
	if level, err := cfg.SlogLevel(); err != nil || level != slog.LevelDebug {
		t.Errorf("SlogLevel(debug) = %v, %v", level, err)
	}

	cfg.LogLevel = "ERROR"
	if level, err := cfg.SlogLevel(); err != nil || level != slog.LevelError {
		t.Errorf("SlogLevel(ERROR) = %v, %v", level, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("REPORT_CACHE_TTL", "")

	cfg := Load()

	if cfg.Port != "8082" {
		t.Errorf("default port = %q", cfg.Port)
	}
	if cfg.ReportCacheTTL != 30*time.Second {
		t.Errorf("default cache TTL = %v", cfg.ReportCacheTTL)
	}
}
