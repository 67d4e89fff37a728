package pipeline

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/catalog"
)

func testDescriptor() catalog.Descriptor {
	return catalog.Descriptor{
		Tables: []catalog.Table{
			{
				Name: "amazon_sales",
				Columns: []catalog.Column{
					{Name: "order_id", Type: "VARCHAR"},
					{Name: "sku", Type: "VARCHAR"},
					{Name: "status", Type: "VARCHAR", SampleValues: []string{"Shipped", "Cancelled"}},
					{Name: "quantity", Type: "BIGINT"},
					{Name: "amount", Type: "DOUBLE"},
				},
			},
			{
				Name: "master_sales",
				Columns: []catalog.Column{
					{Name: "sku", Type: "VARCHAR"},
					{Name: "quantity", Type: "BIGINT"},
					{Name: "amount", Type: "DOUBLE"},
					{Name: "category", Type: "VARCHAR"},
				},
			},
		},
	}
}

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	g := NewGuard(slog.Default(), time.Minute)
	t.Cleanup(g.Close)
	return g
}

func candidate(sqlText string, scope Scope) CandidateStatement {
	return CandidateStatement{
		SQL:     sqlText,
		Request: Request{Question: "q", Scope: scope},
	}
}

func TestGuardAcceptsReadOnlyStatements(t *testing.T) {
	t.Parallel()

	g := newTestGuard(t)
	desc := testDescriptor()

	accepted := []string{
		"SELECT sku, SUM(quantity) FROM master_sales GROUP BY sku",
		"SELECT * FROM master_sales LIMIT 10",
		"WITH totals AS (SELECT sku, SUM(amount) AS total FROM master_sales GROUP BY sku) SELECT * FROM totals ORDER BY total DESC",
		"SELECT COUNT(*) FROM master_sales WHERE LOWER(category) LIKE '%kurta%'",
		"SELECT m.sku FROM master_sales m JOIN amazon_sales a ON m.sku = a.sku",
		"SELECT * FROM (SELECT sku FROM master_sales) sub",
		// FROM inside a function call is not a table reference
		"SELECT EXTRACT(month FROM order_date) AS m, SUM(quantity) FROM amazon_sales GROUP BY m",
		"SELECT substring(sku FROM 2) FROM master_sales",
	}
	for _, sqlText := range accepted {
		verdict := g.Validate(candidate(sqlText, ScopeAll()), desc)
		assert.True(t, verdict.Accepted, "expected accept: %s (got %s: %s)", sqlText, verdict.Kind, verdict.Detail)
	}
}

func TestGuardRejectsMutations(t *testing.T) {
	t.Parallel()

	g := newTestGuard(t)
	desc := testDescriptor()

	// No phrasing or casing of a mutation gets through.
	rejected := []string{
		"DROP TABLE master_sales",
		"drop table master_sales",
		"DeLeTe FROM master_sales",
		"INSERT INTO master_sales VALUES (1)",
		"UPDATE master_sales SET quantity = 0",
		"TRUNCATE master_sales",
		"CREATE TABLE x AS SELECT 1",
		"ALTER TABLE master_sales ADD COLUMN x INT",
		"GRANT ALL ON master_sales TO public",
		"MERGE INTO master_sales USING amazon_sales ON true",
		"VACUUM",
		// mutation verb buried in a select-family statement
		"WITH x AS (SELECT 1) DELETE FROM master_sales",
		"SELECT * FROM master_sales WHERE 1 = 1 OR drop = 1",
	}
	for _, sqlText := range rejected {
		verdict := g.Validate(candidate(sqlText, ScopeAll()), desc)
		require.False(t, verdict.Accepted, "expected reject: %s", sqlText)
		assert.Equal(t, KindUnsafeOperation, verdict.Kind, "sql: %s", sqlText)
	}
}

func TestGuardRejectsMultipleStatements(t *testing.T) {
	t.Parallel()

	g := newTestGuard(t)
	verdict := g.Validate(candidate("SELECT 1; DROP TABLE master_sales", ScopeAll()), testDescriptor())
	require.False(t, verdict.Accepted)
	assert.Equal(t, KindUnsafeOperation, verdict.Kind)

	// a semicolon inside a string literal is not a statement boundary
	verdict = g.Validate(candidate("SELECT ';' FROM master_sales", ScopeAll()), testDescriptor())
	assert.True(t, verdict.Accepted)
}

func TestGuardRejectsForbiddenConstructs(t *testing.T) {
	t.Parallel()

	g := newTestGuard(t)
	desc := testDescriptor()

	rejected := []string{
		"SELECT * FROM read_csv_auto('/etc/passwd')",
		"SELECT * FROM read_parquet('data.parquet')",
		"SELECT getenv('HOME')",
		"ATTACH DATABASE 'other.db' AS other",
		"SELECT 1; PRAGMA database_list",
		"COPY master_sales TO 'out.csv'",
		"SET memory_limit = '1GB'",
		"INSTALL httpfs",
		"CALL pragma_table_info('master_sales')",
	}
	for _, sqlText := range rejected {
		verdict := g.Validate(candidate(sqlText, ScopeAll()), desc)
		require.False(t, verdict.Accepted, "expected reject: %s", sqlText)
		assert.Equal(t, KindUnsafeOperation, verdict.Kind, "sql: %s", sqlText)
	}
}

func TestGuardRejectsFileSources(t *testing.T) {
	t.Parallel()

	g := newTestGuard(t)
	desc := testDescriptor()

	// DuckDB reads FROM '<path-or-url>' as a replacement scan over the host
	// filesystem or network, no read_* function needed.
	rejected := []string{
		"SELECT * FROM '/etc/passwd.csv'",
		"SELECT * FROM 'https://example.com/data.parquet'",
		"SELECT * FROM 'data.csv' AS d",
		"SELECT a.sku FROM amazon_sales a JOIN 'leak.csv' b ON a.sku = b.sku",
		"SELECT * FROM master_sales, 'extra.csv'",
	}
	for _, sqlText := range rejected {
		verdict := g.Validate(candidate(sqlText, ScopeAll()), desc)
		require.False(t, verdict.Accepted, "expected reject: %s", sqlText)
		assert.Equal(t, KindUnsafeOperation, verdict.Kind, "sql: %s", sqlText)
		assert.Contains(t, verdict.Detail, "file or URL", "sql: %s", sqlText)
	}

	// a string literal anywhere else stays plain data
	verdict := g.Validate(candidate("SELECT * FROM amazon_sales WHERE status = 'data.csv'", ScopeAll()), desc)
	assert.True(t, verdict.Accepted)
}

func TestGuardCommentsCannotHideVerbs(t *testing.T) {
	t.Parallel()

	g := newTestGuard(t)
	desc := testDescriptor()

	verdict := g.Validate(candidate("SELECT 1 /* ; */ ; DROP TABLE master_sales", ScopeAll()), desc)
	require.False(t, verdict.Accepted)
	assert.Equal(t, KindUnsafeOperation, verdict.Kind)

	// verbs inside comments or string literals are data, not commands
	verdict = g.Validate(candidate("SELECT status FROM amazon_sales WHERE status = 'DELETE' -- drop", ScopeAll()), desc)
	assert.True(t, verdict.Accepted)
}

func TestGuardRejectsMalformedStatements(t *testing.T) {
	t.Parallel()

	g := newTestGuard(t)
	desc := testDescriptor()

	verdict := g.Validate(candidate("", ScopeAll()), desc)
	require.False(t, verdict.Accepted)
	assert.Equal(t, KindMalformedStatement, verdict.Kind)

	verdict = g.Validate(candidate("   -- nothing here", ScopeAll()), desc)
	require.False(t, verdict.Accepted)
	assert.Equal(t, KindMalformedStatement, verdict.Kind)

	verdict = g.Validate(candidate("(SELECT 1)", ScopeAll()), desc)
	require.False(t, verdict.Accepted)
	assert.Equal(t, KindMalformedStatement, verdict.Kind)

	verdict = g.Validate(candidate("EXPLAIN SELECT 1", ScopeAll()), desc)
	require.False(t, verdict.Accepted)
	assert.Equal(t, KindUnsafeOperation, verdict.Kind)
}

func TestGuardRejectsUnknownTables(t *testing.T) {
	t.Parallel()

	g := newTestGuard(t)
	desc := testDescriptor()

	verdict := g.Validate(candidate("SELECT * FROM customers", ScopeAll()), desc)
	require.False(t, verdict.Accepted)
	assert.Equal(t, KindUnknownTable, verdict.Kind)
	assert.Contains(t, verdict.Detail, "customers")

	// case-insensitive resolution
	verdict = g.Validate(candidate("SELECT * FROM Master_Sales", ScopeAll()), desc)
	assert.True(t, verdict.Accepted)

	// CTE names are not store tables
	verdict = g.Validate(candidate("WITH temp AS (SELECT 1 AS n) SELECT n FROM temp", ScopeAll()), desc)
	assert.True(t, verdict.Accepted)
}

func TestGuardEnforcesScope(t *testing.T) {
	t.Parallel()

	g := newTestGuard(t)
	desc := testDescriptor()
	scope := ScopeTable("amazon_sales")

	verdict := g.Validate(candidate("SELECT COUNT(*) FROM amazon_sales", scope), desc)
	assert.True(t, verdict.Accepted)

	// known table, but outside the single-table scope
	verdict = g.Validate(candidate("SELECT COUNT(*) FROM master_sales", scope), desc)
	require.False(t, verdict.Accepted)
	assert.Equal(t, KindUnknownTable, verdict.Kind)
	assert.Contains(t, verdict.Detail, "outside the requested scope")

	verdict = g.Validate(candidate("SELECT a.sku FROM amazon_sales a JOIN master_sales m ON a.sku = m.sku", scope), desc)
	require.False(t, verdict.Accepted)
	assert.Equal(t, KindUnknownTable, verdict.Kind)
}

func TestGuardColumnNotesAreAdvisory(t *testing.T) {
	t.Parallel()

	g := newTestGuard(t)
	desc := testDescriptor()

	verdict := g.Validate(candidate("SELECT no_such_column FROM master_sales", ScopeAll()), desc)
	require.True(t, verdict.Accepted)
	require.NotEmpty(t, verdict.Notes)
	assert.Contains(t, verdict.Notes[0], "no_such_column")

	verdict = g.Validate(candidate("SELECT sku, quantity FROM master_sales", ScopeAll()), desc)
	require.True(t, verdict.Accepted)
	assert.Empty(t, verdict.Notes)
}

func TestGuardVerdictsAreDeterministic(t *testing.T) {
	t.Parallel()

	g := newTestGuard(t)
	desc := testDescriptor()
	cand := candidate("SELECT sku FROM master_sales", ScopeAll())

	first := g.Validate(cand, desc)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, g.Validate(cand, desc))
	}

	// same statement under a different scope is a different decision
	out := g.Validate(candidate("SELECT sku FROM master_sales", ScopeTable("amazon_sales")), desc)
	assert.False(t, out.Accepted)
}
