package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var tableNameCleaner = regexp.MustCompile(`[^a-z0-9_]+`)

// tableNameForFile derives a safe table identifier from a CSV file name.
func tableNameForFile(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(strings.TrimSpace(base))
	base = strings.ReplaceAll(base, " ", "_")
	base = tableNameCleaner.ReplaceAllString(base, "_")
	base = strings.Trim(base, "_")
	if base == "" {
		return ""
	}
	if base[0] >= '0' && base[0] <= '9' {
		base = "t_" + base
	}
	return base
}

// LoadCSVDir ingests every CSV file in dir into its own table via DuckDB's
// read_csv_auto, replacing tables that already exist. Returns the names of
// the loaded tables. This is the only writing path; it must not run
// concurrently with query traffic.
func (s *Store) LoadCSVDir(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var loaded []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}

		table := tableNameForFile(entry.Name())
		if table == "" {
			s.log.Warn("loader: skipping file with unusable name", "file", entry.Name())
			continue
		}

		path := filepath.Join(dir, entry.Name())
		stmt := fmt.Sprintf(
			`CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto('%s')`,
			quoteIdent(table), escapeString(path),
		)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.log.Error("loader: failed to load file", "file", entry.Name(), "table", table, "error", err)
			continue
		}

		s.log.Info("loader: loaded file", "file", entry.Name(), "table", table)
		loaded = append(loaded, table)
	}

	sort.Strings(loaded)
	return loaded, nil
}

// salesKeyColumns and salesDateColumns identify tables eligible for the
// master_sales union.
var (
	salesKeyColumns  = []string{"sku", "sku_code", "style_id"}
	salesDateColumns = []string{"date", "order_date", "months", "month"}
)

// CreateMasterSales merges compatible sales tables into a single master_sales
// table using a by-name union, filling columns absent from a source table
// with NULL. A table qualifies when it carries both a SKU-like column and a
// date-like column. Returns the source tables merged.
func (s *Store) CreateMasterSales(ctx context.Context) ([]string, error) {
	tables, err := s.tableColumns(ctx)
	if err != nil {
		return nil, err
	}

	var sources []string
	for table, columns := range tables {
		if table == "master_sales" {
			continue
		}
		if hasAnyColumn(columns, salesKeyColumns) && hasAnyColumn(columns, salesDateColumns) {
			sources = append(sources, table)
		}
	}
	if len(sources) == 0 {
		return nil, nil
	}
	sort.Strings(sources)

	parts := make([]string, len(sources))
	for i, table := range sources {
		parts[i] = "SELECT * FROM " + quoteIdent(table)
	}
	stmt := "CREATE OR REPLACE TABLE master_sales AS " + strings.Join(parts, " UNION ALL BY NAME ")

	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return nil, fmt.Errorf("failed to create master_sales: %w", err)
	}

	s.log.Info("loader: created master_sales", "sources", sources)
	return sources, nil
}

// tableColumns returns the lowercase column names of every table in the main
// schema.
func (s *Store) tableColumns(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT table_name, column_name
		FROM information_schema.columns
		WHERE table_schema = 'main'
		ORDER BY table_name, ordinal_position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	tables := make(map[string][]string)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, fmt.Errorf("failed to scan column row: %w", err)
		}
		tables[table] = append(tables[table], strings.ToLower(column))
	}
	return tables, rows.Err()
}

func hasAnyColumn(columns, wanted []string) bool {
	for _, c := range columns {
		for _, w := range wanted {
			if c == w {
				return true
			}
		}
	}
	return false
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func escapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
