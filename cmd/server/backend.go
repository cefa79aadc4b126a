package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mmuslimabdulj/goat-rooms/internal/config"
	"github.com/mmuslimabdulj/goat-rooms/internal/store"
	"github.com/mmuslimabdulj/goat-rooms/internal/store/memory"
	"github.com/mmuslimabdulj/goat-rooms/internal/store/sqlite"
)

// openBackend returns the room store STORE_DRIVER selects.
func openBackend(cfg *config.Config) (store.Backend, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memory.New(memory.WithMaxRetries(cfg.MaxTransactRetries)), nil
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store directory: %w", err)
			}
		}
		return sqlite.Open(cfg.SQLitePath,
			sqlite.WithMaxRetries(cfg.MaxTransactRetries),
			sqlite.WithPollInterval(cfg.StorePollInterval),
		)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
