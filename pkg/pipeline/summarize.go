package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/catalog"
)

// maxProfileColumns bounds how many columns of each kind are profiled for a
// summary.
const maxProfileColumns = 8

// Summary is the outcome of summarizing one table.
type Summary struct {
	Table    string `json:"table"`
	RowCount int64  `json:"row_count"`
	Text     string `json:"text"`
}

// Summarize profiles one table with read-only SQL and asks the backend for a
// prose summary. The model sees the profile, not the raw rows.
func (p *Pipeline) Summarize(ctx context.Context, table string) (Summary, error) {
	desc, err := p.cfg.Schema.Describe(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("schema introspection failed: %w", err)
	}
	t, ok := desc.Table(table)
	if !ok {
		return Summary{}, &KindError{Kind: KindUnknownTable, Detail: fmt.Sprintf("table %q is not present in the store", table)}
	}

	profile, rowCount, err := p.buildProfile(ctx, t)
	if err != nil {
		return Summary{}, err
	}

	cctx, cancel := context.WithTimeout(ctx, p.cfg.BackendTimeout)
	defer cancel()

	userPrompt := fmt.Sprintf("Dataset: %s\n\n%s\n\nWrite the summary.", t.Name, profile)
	text, err := p.cfg.LLM.Complete(cctx, p.cfg.Prompts.Summarize, userPrompt)
	if err != nil {
		kind, detail := backendFailure(err)
		return Summary{}, &KindError{Kind: kind, Detail: detail}
	}

	return Summary{
		Table:    t.Name,
		RowCount: rowCount,
		Text:     strings.TrimSpace(text),
	}, nil
}

func isNumericType(colType string) bool {
	t := strings.ToLower(colType)
	for _, n := range []string{"int", "decimal", "numeric", "double", "float", "real"} {
		if strings.Contains(t, n) {
			return true
		}
	}
	return false
}

// buildProfile computes row count, numeric statistics, and categorical top
// values through the read-only executor.
func (p *Pipeline) buildProfile(ctx context.Context, t catalog.Table) (string, int64, error) {
	ident := quoteIdent(t.Name)

	countRes, err := p.profileQuery(ctx, "SELECT COUNT(*) FROM "+ident)
	if err != nil {
		return "", 0, err
	}
	rowCount := asInt64(countRes.Rows[0][0])

	var sb strings.Builder
	fmt.Fprintf(&sb, "Total rows: %d\n\nColumns:\n", rowCount)
	for _, col := range t.Columns {
		fmt.Fprintf(&sb, "  - %s (%s)\n", col.Name, col.Type)
	}

	numericDone := 0
	categoricalDone := 0
	for _, col := range t.Columns {
		switch {
		case isNumericType(col.Type) && numericDone < maxProfileColumns:
			c := quoteIdent(col.Name)
			res, err := p.profileQuery(ctx, fmt.Sprintf(
				"SELECT MIN(%s), MAX(%s), AVG(%s), STDDEV(%s) FROM %s", c, c, c, c, ident))
			if err != nil {
				p.log.Debug("summarize: numeric profile failed", "table", t.Name, "column", col.Name, "error", err)
				continue
			}
			row := res.Rows[0]
			fmt.Fprintf(&sb, "\nNumeric column %s: min=%v max=%v avg=%v stddev=%v\n",
				col.Name, row[0], row[1], row[2], row[3])
			numericDone++

		case isCategoricalProfileType(col.Type) && categoricalDone < maxProfileColumns:
			c := quoteIdent(col.Name)
			res, err := p.profileQuery(ctx, fmt.Sprintf(
				"SELECT %s, COUNT(*) AS n FROM %s WHERE %s IS NOT NULL GROUP BY %s ORDER BY n DESC LIMIT 3",
				c, ident, c, c))
			if err != nil {
				p.log.Debug("summarize: categorical profile failed", "table", t.Name, "column", col.Name, "error", err)
				continue
			}
			fmt.Fprintf(&sb, "\nTop values of %s:\n", col.Name)
			for _, row := range res.Rows {
				fmt.Fprintf(&sb, "  %v: %v rows\n", row[0], row[1])
			}
			categoricalDone++
		}
	}

	return sb.String(), rowCount, nil
}

func isCategoricalProfileType(colType string) bool {
	t := strings.ToLower(colType)
	return t == "varchar" || t == "text" || strings.HasPrefix(t, "enum")
}

// profileQuery runs one profile statement and requires at least one row.
func (p *Pipeline) profileQuery(ctx context.Context, sqlText string) (ExecutionResult, error) {
	ectx, cancel := context.WithTimeout(ctx, p.cfg.ExecutionTimeout)
	defer cancel()

	res, err := p.cfg.Executor.Execute(ectx, sqlText)
	if err != nil {
		return ExecutionResult{}, err
	}
	if res.Error != "" {
		return ExecutionResult{}, fmt.Errorf("profile query failed: %s", res.Error)
	}
	if len(res.Rows) == 0 {
		return ExecutionResult{}, fmt.Errorf("profile query returned no rows")
	}
	return res, nil
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
