// Package catalog produces structural descriptions of the analytics store
// for use as grounding context. Descriptors are snapshots: they are
// recomputed per orchestration run rather than cached across structural
// changes, since a stale descriptor is the primary cause of
// attribute-not-found failures downstream.
package catalog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// Column is one column of a table with its declared type.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`

	// SampleValues holds distinct values for low-cardinality text columns,
	// populated only when sample enrichment is enabled.
	SampleValues []string `json:"sample_values,omitempty"`
}

// Table is an ordered set of columns.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Descriptor is a read-only structural snapshot of the store.
type Descriptor struct {
	Tables []Table `json:"tables"`
}

// Table returns the named table, matching case-insensitively.
func (d Descriptor) Table(name string) (Table, bool) {
	for _, t := range d.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Table{}, false
}

// HasTable reports whether the descriptor contains the named table.
func (d Descriptor) HasTable(name string) bool {
	_, ok := d.Table(name)
	return ok
}

// TableNames returns the table names in descriptor order.
func (d Descriptor) TableNames() []string {
	names := make([]string, len(d.Tables))
	for i, t := range d.Tables {
		names[i] = t.Name
	}
	return names
}

// Fingerprint returns a digest of the structural content (names and types,
// not sample values). Two descriptors with the same fingerprint describe the
// same table set.
func (d Descriptor) Fingerprint() string {
	h := sha256.New()
	for _, t := range d.Tables {
		fmt.Fprintf(h, "%s\n", t.Name)
		for _, c := range t.Columns {
			fmt.Fprintf(h, "  %s %s\n", c.Name, c.Type)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Config holds the configuration for the catalog.
type Config struct {
	Logger *slog.Logger
	DB     *sql.DB

	// SampleValues enables distinct-value enrichment for low-cardinality
	// text columns. Adds one query per eligible column to Describe.
	SampleValues bool
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.DB == nil {
		return fmt.Errorf("database is required")
	}
	return nil
}

// Catalog inspects the store's structure. It is read-only and has no side
// effects on the store.
type Catalog struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate catalog config: %w", err)
	}
	return &Catalog{log: cfg.Logger, cfg: cfg}, nil
}

// Describe returns a fresh structural snapshot of the store.
func (c *Catalog) Describe(ctx context.Context) (Descriptor, error) {
	rows, err := c.cfg.DB.QueryContext(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'main'
		ORDER BY table_name, ordinal_position
	`)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to query schema: %w", err)
	}
	defer rows.Close()

	var d Descriptor
	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return Descriptor{}, fmt.Errorf("failed to scan schema row: %w", err)
		}
		if len(d.Tables) == 0 || d.Tables[len(d.Tables)-1].Name != table {
			d.Tables = append(d.Tables, Table{Name: table})
		}
		last := &d.Tables[len(d.Tables)-1]
		last.Columns = append(last.Columns, Column{Name: column, Type: dataType})
	}
	if err := rows.Err(); err != nil {
		return Descriptor{}, fmt.Errorf("error iterating schema rows: %w", err)
	}

	if c.cfg.SampleValues {
		c.enrichSampleValues(ctx, &d)
	}

	return d, nil
}
