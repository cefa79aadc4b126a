package config

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Port)
	}
	if cfg.StaticDir != "static" {
		t.Errorf("Expected static dir 'static', got %s", cfg.StaticDir)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("Expected 2 default origins, got %v", cfg.AllowedOrigins)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("Expected 24h session TTL, got %v", cfg.SessionTTL)
	}
	if cfg.StoreDriver != DriverMemory {
		t.Errorf("Expected memory store, got %s", cfg.StoreDriver)
	}
	if cfg.MaxTransactRetries != 25 {
		t.Errorf("Expected 25 retries, got %d", cfg.MaxTransactRetries)
	}
	if cfg.StorePollInterval != 500*time.Millisecond {
		t.Errorf("Expected 500ms poll interval, got %v", cfg.StorePollInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("RATE_LIMIT_MESSAGES", "3")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("SQLITE_PATH", "/tmp/rooms.db")
	t.Setenv("MAX_TRANSACT_RETRIES", "5")
	t.Setenv("CLAIM_VACANT_OWNERSHIP", "true")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("Expected trimmed origins, got %v", cfg.AllowedOrigins)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("Expected 2h, got %v", cfg.SessionTTL)
	}
	if cfg.MessageLimit() != 3 {
		t.Errorf("Expected message limit 3, got %v", cfg.MessageLimit())
	}
	if cfg.StoreDriver != DriverSQLite {
		t.Errorf("Expected sqlite driver, got %s", cfg.StoreDriver)
	}
	if cfg.MaxTransactRetries != 5 {
		t.Errorf("Expected 5 retries, got %d", cfg.MaxTransactRetries)
	}
	if !cfg.ClaimVacantOwnership {
		t.Error("Expected vacant ownership claims enabled")
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"Unknown driver", "STORE_DRIVER", "redis"},
		{"Bad duration", "SESSION_TTL", "forever"},
		{"Zero retries", "MAX_TRANSACT_RETRIES", "0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := LoadFromEnv(); err == nil {
				t.Errorf("Expected error for %s=%s", tc.key, tc.value)
			}
		})
	}
}
