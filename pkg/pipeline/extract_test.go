package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractStatement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "json object with sql field",
			response: `{"sql": "SELECT sku, SUM(quantity) FROM master_sales GROUP BY sku", "explanation": "totals per sku"}`,
			want:     "SELECT sku, SUM(quantity) FROM master_sales GROUP BY sku",
		},
		{
			name:     "json inside fenced block",
			response: "Here you go:\n```json\n{\"sql\": \"SELECT 1\"}\n```",
			want:     "SELECT 1",
		},
		{
			name:     "sql fenced block",
			response: "Sure, this should work:\n```sql\nSELECT COUNT(*) FROM amazon_sales;\n```\nLet me know.",
			want:     "SELECT COUNT(*) FROM amazon_sales",
		},
		{
			name:     "generic fenced block",
			response: "```\nSELECT status FROM amazon_sales LIMIT 3\n```",
			want:     "SELECT status FROM amazon_sales LIMIT 3",
		},
		{
			name:     "raw statement",
			response: "SELECT category, AVG(amount) FROM master_sales GROUP BY category",
			want:     "SELECT category, AVG(amount) FROM master_sales GROUP BY category",
		},
		{
			name:     "raw with statement",
			response: "WITH t AS (SELECT 1 AS n) SELECT n FROM t",
			want:     "WITH t AS (SELECT 1 AS n) SELECT n FROM t",
		},
		{
			name:     "mutation verb still extracts",
			response: "```sql\nDROP TABLE master_sales\n```",
			want:     "DROP TABLE master_sales",
		},
		{
			name:     "trailing semicolon stripped",
			response: "SELECT 1;",
			want:     "SELECT 1",
		},
		{
			name:     "prose only",
			response: "I cannot answer that question from the available data.",
			want:     "",
		},
		{
			name:     "empty response",
			response: "",
			want:     "",
		},
		{
			name:     "json without sql falls through to prose",
			response: `{"explanation": "no statement applies"}`,
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExtractStatement(tt.response))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	t.Parallel()

	got := extractJSONObject(`prefix {"sql": "SELECT '}' FROM t", "n": {"x": 1}} suffix`, 7)
	assert.Equal(t, `{"sql": "SELECT '}' FROM t", "n": {"x": 1}}`, got)

	assert.Equal(t, "", extractJSONObject(`{"unterminated": `, 0))
	assert.Equal(t, "", extractJSONObject("no object here", 0))
}

func TestCleanSQL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SELECT 1", cleanSQL("  SELECT 1;  "))
	assert.Equal(t, "SELECT 1\nFROM t", cleanSQL("SELECT 1\r\nFROM t"))
	assert.Equal(t, "SELECT 1", cleanSQL("sql\nSELECT 1"))
}
