package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/catalog"
	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/logger"
	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/metrics"
	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/pipeline"
	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/server"
	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/store"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr        = "0.0.0.0:8080"
	defaultReadHeaderTimeout = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
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
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "HTTP server listen address")
	readHeaderTimeoutFlag := flag.Duration("read-header-timeout", defaultReadHeaderTimeout, "HTTP read header timeout")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", defaultShutdownTimeout, "Server shutdown timeout")
	allowedOriginsFlag := flag.StringSlice("allowed-origins", []string{"*"}, "CORS allowed origins")

	dbPathFlag := flag.String("db-path", "retail.duckdb", "Path to the DuckDB database file (or set INSIGHTS_DB_PATH env var)")
	dataDirFlag := flag.String("data-dir", "", "Directory of CSV files to load into the store on startup")
	masterSalesFlag := flag.Bool("master-sales", false, "Build the master_sales union table after loading CSVs")
	maxRowsFlag := flag.Int("max-rows", 0, "Maximum rows returned per query (0 uses the default)")

	backendFlag := flag.String("backend", "anthropic", "Language backend to use: anthropic or ollama (or set INSIGHTS_BACKEND env var)")
	modelFlag := flag.String("model", "", "Model name for the language backend")
	ollamaURLFlag := flag.String("ollama-url", "http://localhost:11434", "Base URL of the Ollama server")
	sampleValuesFlag := flag.Bool("sample-values", true, "Include sample values for categorical columns in the schema catalog")

	flag.Parse()

	// Override flags with environment variables if set
	if envDBPath := os.Getenv("INSIGHTS_DB_PATH"); envDBPath != "" {
		*dbPathFlag = envDBPath
	}
	if envBackend := os.Getenv("INSIGHTS_BACKEND"); envBackend != "" {
		*backendFlag = envBackend
	}

	log := logger.New(*verboseFlag)

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	// Set up signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigCh
		log.Info("server: received signal", "signal", sig.String())
		cancel()
	}()

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
		log.Info("store: loaded CSV tables", "count", len(tables))
		if *masterSalesFlag {
			merged, err := st.CreateMasterSales(ctx)
			if err != nil {
				return fmt.Errorf("failed to build master_sales: %w", err)
			}
			log.Info("store: built master_sales", "sources", merged)
		}
	}

	cat, err := catalog.New(catalog.Config{
		Logger:       log,
		DB:           st.DB(),
		SampleValues: *sampleValuesFlag,
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

	srv, err := server.New(server.Config{
		Logger:            log,
		Pipeline:          pipe,
		Catalog:           cat,
		ListenAddr:        *listenAddrFlag,
		ReadHeaderTimeout: *readHeaderTimeoutFlag,
		ShutdownTimeout:   *shutdownTimeoutFlag,
		AllowedOrigins:    *allowedOriginsFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Run(ctx)
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
