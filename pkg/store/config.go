package store

import (
	"fmt"
	"log/slog"
)

const defaultMaxRows = 500

// Config holds the configuration for the analytics store.
type Config struct {
	Logger *slog.Logger

	// Path is the DuckDB database file. Empty opens an in-memory database.
	Path string

	// MaxRows caps the number of rows materialized by a single query.
	// Results beyond the cap are dropped and the result is marked truncated.
	MaxRows int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.MaxRows < 0 {
		return fmt.Errorf("max rows must not be negative")
	}
	if cfg.MaxRows == 0 {
		cfg.MaxRows = defaultMaxRows
	}
	return nil
}
