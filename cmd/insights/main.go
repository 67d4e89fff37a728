package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	flag "github.com/spf13/pflag"

	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/catalog"
	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/logger"
	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/pipeline"
	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	dbPathFlag := flag.String("db-path", "retail.duckdb", "Path to the DuckDB database file (or set INSIGHTS_DB_PATH env var)")
	dataDirFlag := flag.String("data-dir", "", "Directory of CSV files to load into the store before running")
	masterSalesFlag := flag.Bool("master-sales", false, "Build the master_sales union table after loading CSVs")
	maxRowsFlag := flag.Int("max-rows", 0, "Maximum rows returned per query (0 uses the default)")

	questionFlag := flag.String("question", "", "Natural-language question to answer")
	tableFlag := flag.String("table", "", "Restrict the question to a single table (default: all tables)")
	summarizeFlag := flag.String("summarize", "", "Summarize the named table instead of answering a question")
	showSQLFlag := flag.Bool("show-sql", false, "Print the generated SQL before the result")

	backendFlag := flag.String("backend", "anthropic", "Language backend to use: anthropic or ollama (or set INSIGHTS_BACKEND env var)")
	modelFlag := flag.String("model", "", "Model name for the language backend")
	ollamaURLFlag := flag.String("ollama-url", "http://localhost:11434", "Base URL of the Ollama server")

	flag.Parse()

	// Override flags with environment variables if set
	if envDBPath := os.Getenv("INSIGHTS_DB_PATH"); envDBPath != "" {
		*dbPathFlag = envDBPath
	}
	if envBackend := os.Getenv("INSIGHTS_BACKEND"); envBackend != "" {
		*backendFlag = envBackend
	}

	if *questionFlag == "" && *summarizeFlag == "" && *dataDirFlag == "" {
		flag.Usage()
		return fmt.Errorf("nothing to do: pass --question, --summarize, or --data-dir")
	}

	log := logger.New(*verboseFlag)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(ctx, store.Config{
		Logger:  log,
		Path:    *dbPathFlag,
		MaxRows: *maxRowsFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("failed to close store", "error", err)
		}
	}()

	if *dataDirFlag != "" {
		tables, err := st.LoadCSVDir(ctx, *dataDirFlag)
		if err != nil {
			return fmt.Errorf("failed to load CSV directory: %w", err)
		}
		fmt.Printf("Loaded %d tables: %s\n", len(tables), strings.Join(tables, ", "))
		if *masterSalesFlag {
			merged, err := st.CreateMasterSales(ctx)
			if err != nil {
				return fmt.Errorf("failed to build master_sales: %w", err)
			}
			fmt.Printf("Built master_sales from: %s\n", strings.Join(merged, ", "))
		}
	}

	if *questionFlag == "" && *summarizeFlag == "" {
		return nil
	}

	cat, err := catalog.New(catalog.Config{
		Logger:       log,
		DB:           st.DB(),
		SampleValues: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create catalog: %w", err)
	}

	llm, err := newLLMClient(*backendFlag, *modelFlag, *ollamaURLFlag)
	if err != nil {
		return err
	}

	prompts, err := pipeline.LoadPrompts()
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}

	pipe, err := pipeline.New(&pipeline.Config{
		Logger:   log,
		LLM:      llm,
		Executor: &pipeline.StoreExecutor{Store: st},
		Schema:   cat,
		Prompts:  prompts,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipe.Close()

	if *summarizeFlag != "" {
		summary, err := pipe.Summarize(ctx, *summarizeFlag)
		if err != nil {
			return fmt.Errorf("failed to summarize %s: %w", *summarizeFlag, err)
		}
		fmt.Printf("%s (%d rows)\n\n%s\n", summary.Table, summary.RowCount, summary.Text)
		return nil
	}

	scope := pipeline.ScopeAll()
	if *tableFlag != "" {
		scope = pipeline.ScopeTable(*tableFlag)
	}

	env := pipe.Run(ctx, pipeline.Request{Question: *questionFlag, Scope: scope})

	if *showSQLFlag && env.SQL != "" {
		fmt.Printf("SQL: %s\n\n", env.SQL)
	}
	if env.Failure != nil {
		return fmt.Errorf("%s: %s", env.Failure.Kind, env.Failure.Detail)
	}

	renderResult(env.Result)
	for _, w := range env.Warnings {
		if w == pipeline.KindResultTruncated {
			fmt.Println("* result truncated at the row cap")
		}
	}
	fmt.Printf("%d rows in %s (%d attempts)\n", env.Result.Count, env.Elapsed, env.Attempts)
	return nil
}

func renderResult(res *pipeline.ExecutionResult) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(res.Columns)
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprintf("%v", v)
		}
		table.Append(cells)
	}
	table.Render()
}

func newLLMClient(backend, model, ollamaURL string) (pipeline.LLMClient, error) {
	switch strings.ToLower(backend) {
	case "anthropic":
		m := anthropic.ModelClaude3_5Haiku20241022
		if model != "" {
			m = anthropic.Model(model)
		}
		return pipeline.NewAnthropicLLMClient(m, 2048), nil
	case "ollama":
		if model == "" {
			model = "llama3.1"
		}
		return pipeline.NewOllamaLLMClient(ollamaURL, model), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (expected anthropic or ollama)", backend)
	}
}
