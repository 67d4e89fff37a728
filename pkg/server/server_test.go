package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/catalog"
	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/pipeline"
	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/store"
)

// scriptedLLM replays canned responses in order.
type scriptedLLM struct {
	responses []string
	calls     int
}

func (m *scriptedLLM) Complete(ctx context.Context, _, _ string) (string, error) {
	if m.calls >= len(m.responses) {
		return "", fmt.Errorf("unexpected call %d", m.calls)
	}
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}

func newTestServer(t *testing.T, llm pipeline.LLMClient) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	log := slog.Default()

	st, err := store.Open(ctx, store.Config{Logger: log, Path: ""})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = st.DB().ExecContext(ctx, `CREATE TABLE master_sales (sku VARCHAR, quantity BIGINT)`)
	require.NoError(t, err)
	_, err = st.DB().ExecContext(ctx, `INSERT INTO master_sales VALUES ('A', 2), ('B', 5)`)
	require.NoError(t, err)

	cat, err := catalog.New(catalog.Config{Logger: log, DB: st.DB()})
	require.NoError(t, err)

	prompts, err := pipeline.LoadPrompts()
	require.NoError(t, err)

	pipe, err := pipeline.New(&pipeline.Config{
		Logger:   log,
		LLM:      llm,
		Executor: &pipeline.StoreExecutor{Store: st},
		Schema:   cat,
		Prompts:  prompts,
	})
	require.NoError(t, err)
	t.Cleanup(pipe.Close)

	srv, err := New(Config{Logger: log, Pipeline: pipe, Catalog: cat})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &scriptedLLM{})
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &scriptedLLM{})
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetTables(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &scriptedLLM{})
	resp, err := http.Get(ts.URL + "/api/tables")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var desc catalog.Descriptor
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&desc))
	require.Len(t, desc.Tables, 1)
	assert.Equal(t, "master_sales", desc.Tables[0].Name)
}

func TestQueryEndpoint(t *testing.T) {
	t.Parallel()

	llm := &scriptedLLM{responses: []string{
		"```sql\nSELECT sku, SUM(quantity) AS total FROM master_sales GROUP BY sku ORDER BY sku\n```",
	}}
	ts := newTestServer(t, llm)

	resp := postJSON(t, ts.URL+"/api/query", `{"question": "total quantity per sku"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env pipeline.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.Nil(t, env.Failure)
	require.NotNil(t, env.Result)
	assert.Equal(t, 2, env.Result.Count)
	assert.Equal(t, []string{"sku", "total"}, env.Result.Columns)
	require.NotNil(t, env.Verdict)
	assert.True(t, env.Verdict.Accepted)
}

func TestQueryEndpointScopedTable(t *testing.T) {
	t.Parallel()

	// the model disregards the scope; the request still fails closed
	llm := &scriptedLLM{responses: []string{
		"```sql\nSELECT * FROM master_sales\n```",
		"```sql\nSELECT * FROM master_sales\n```",
	}}
	ts := newTestServer(t, llm)

	resp := postJSON(t, ts.URL+"/api/query", `{"question": "show everything", "table": "other_table"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env pipeline.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.NotNil(t, env.Failure)
	assert.Equal(t, pipeline.KindUnknownTable, env.Failure.Kind)
	assert.Nil(t, env.Result)
}

func TestQueryEndpointRejectsUnsafeSQL(t *testing.T) {
	t.Parallel()

	llm := &scriptedLLM{responses: []string{
		"```sql\nDROP TABLE master_sales\n```",
		"```sql\nDROP TABLE master_sales\n```",
	}}
	ts := newTestServer(t, llm)

	resp := postJSON(t, ts.URL+"/api/query", `{"question": "drop it"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env pipeline.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.NotNil(t, env.Failure)
	assert.Equal(t, pipeline.KindUnsafeOperation, env.Failure.Kind)
}

func TestQueryEndpointBadRequests(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &scriptedLLM{})

	resp := postJSON(t, ts.URL+"/api/query", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/query", `{"question": "  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSummarizeEndpointUnknownTable(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &scriptedLLM{})

	resp := postJSON(t, ts.URL+"/api/summarize", `{"table": "customers"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/summarize", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSummarizeEndpoint(t *testing.T) {
	t.Parallel()

	llm := &scriptedLLM{responses: []string{
		"Two SKUs with seven units sold in total.",
	}}
	ts := newTestServer(t, llm)

	resp := postJSON(t, ts.URL+"/api/summarize", `{"table": "master_sales"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary pipeline.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, "master_sales", summary.Table)
	assert.Equal(t, int64(2), summary.RowCount)
	assert.Contains(t, summary.Text, "seven units")
}
