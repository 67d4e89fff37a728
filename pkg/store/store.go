// Package store owns the embedded DuckDB database holding the cleaned retail
// tables. One Store is created at process start and shared read-only across
// concurrent query requests; only the loading path writes, and callers must
// not run it concurrently with query traffic.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/duckdb/duckdb-go/v2"
)

// Store wraps a process-wide DuckDB handle.
type Store struct {
	log     *slog.Logger
	db      *sql.DB
	maxRows int
}

// Result holds the materialized rows of one query. Rows are a snapshot; no
// cursor is retained past the call.
type Result struct {
	Columns   []string
	Rows      [][]any
	Count     int
	Truncated bool
}

// Open opens the database and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate store config: %w", err)
	}

	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cfg.Logger.Debug("store: opened", "path", cfg.Path, "maxRows", cfg.MaxRows)

	return &Store{
		log:     cfg.Logger,
		db:      db,
		maxRows: cfg.MaxRows,
	}, nil
}

// DB exposes the underlying handle for structural introspection.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// QueryReadOnly executes a single statement inside a transaction that is
// always rolled back, so a statement that slipped past validation cannot
// persist changes. Rows beyond the configured cap are dropped and the result
// is marked truncated.
func (s *Store) QueryReadOnly(ctx context.Context, sqlText string) (Result, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is the intended outcome

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("failed to get columns: %w", err)
	}

	result := Result{Columns: columns}
	for rows.Next() {
		if result.Count >= s.maxRows {
			result.Truncated = true
			break
		}

		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return Result{}, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, val := range values {
			if b, ok := val.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
		result.Count++
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}

	return result, nil
}
