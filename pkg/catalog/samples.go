package catalog

import (
	"context"
	"fmt"
	"strings"
)

const (
	// maxSampleValues is the cutoff above which a column is treated as
	// high-cardinality and gets no samples.
	maxSampleValues = 15

	// sampleProbeLimit controls how many distinct values are fetched to
	// detect high cardinality.
	sampleProbeLimit = 20
)

// isCategoricalType returns true if the column type should have sample values
// displayed in the schema text.
func isCategoricalType(colType string) bool {
	t := strings.ToLower(colType)
	return t == "varchar" || t == "text" || strings.HasPrefix(t, "enum")
}

// shouldSkipColumn returns true for columns whose values are identifiers or
// free text rather than categories.
func shouldSkipColumn(colName string) bool {
	name := strings.ToLower(colName)
	skipSuffixes := []string{"_id", "_key", "_code", "_at", "_time", "_date", "_hash"}
	for _, suffix := range skipSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	skipExact := []string{"id", "sku", "name", "description", "comment", "message", "error", "reason"}
	for _, exact := range skipExact {
		if name == exact {
			return true
		}
	}
	return false
}

// enrichSampleValues attaches distinct values to eligible columns. Failures
// are logged and skipped; samples are advisory, not structural.
func (c *Catalog) enrichSampleValues(ctx context.Context, d *Descriptor) {
	for ti := range d.Tables {
		table := &d.Tables[ti]
		for ci := range table.Columns {
			col := &table.Columns[ci]
			if !isCategoricalType(col.Type) || shouldSkipColumn(col.Name) {
				continue
			}
			samples, err := c.fetchColumnSamples(ctx, table.Name, col.Name)
			if err != nil {
				c.log.Debug("catalog: sample fetch failed", "table", table.Name, "column", col.Name, "error", err)
				continue
			}
			if len(samples) > 0 && len(samples) <= maxSampleValues {
				col.SampleValues = samples
			}
		}
	}
}

func (c *Catalog) fetchColumnSamples(ctx context.Context, table, column string) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL AND CAST(%s AS VARCHAR) != '' LIMIT %d`,
		quoteIdent(column), quoteIdent(table), quoteIdent(column), quoteIdent(column), sampleProbeLimit,
	)

	rows, err := c.cfg.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		samples = append(samples, v)
	}
	return samples, rows.Err()
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
