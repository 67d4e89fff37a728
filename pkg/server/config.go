package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/catalog"
	"github.com/mygoal-javadeveloper/Blend360-LLM-retail-insights/pkg/pipeline"
)

// Config holds the configuration for the HTTP API server.
type Config struct {
	Logger   *slog.Logger
	Pipeline *pipeline.Pipeline
	Catalog  *catalog.Catalog

	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	AllowedOrigins    []string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if cfg.Pipeline == nil {
		return fmt.Errorf("pipeline is required")
	}
	if cfg.Catalog == nil {
		return fmt.Errorf("catalog is required")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = 30 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return nil
}
