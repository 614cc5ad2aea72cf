package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/flowgrid/flowgrid/api"
	"github.com/flowgrid/flowgrid/config"
	"github.com/flowgrid/flowgrid/engine"
	"github.com/flowgrid/flowgrid/internal/metrics"
	"github.com/flowgrid/flowgrid/llm"
	"github.com/flowgrid/flowgrid/llm/providers/anthropic"
	"github.com/flowgrid/flowgrid/llm/providers/openai"
	"github.com/flowgrid/flowgrid/nodes"

	"github.com/prometheus/client_golang/prometheus"
)

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	parseFlags(fs, args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fail("Failed to load config: %v", err)
	}

	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		fail("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting flowgrid",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
		zap.String("addr", cfg.Server.Addr),
	)

	providers := buildProviders(cfg, logger)
	registry := nodes.DefaultRegistry(nodes.Deps{
		Logger:     logger,
		HTTPClient: &http.Client{Timeout: cfg.Engine.HTTPTimeout},
		Providers:  providers,
		Actions:    nodes.NewActionRegistry(),
	})

	history := engine.NewHistory(cfg.Engine.HistorySize)
	gatherer := prometheus.NewRegistry()
	executor := engine.NewExecutor(registry,
		engine.WithLogger(logger),
		engine.WithHistory(history),
		engine.WithMetrics(metrics.New(gatherer)),
	)

	deps := api.ServerDeps{
		Executor: executor,
		Registry: registry,
		History:  history,
		Logger:   logger,
	}
	if cfg.Server.MetricsEnabled {
		deps.Gatherer = gatherer
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewMux(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Fatal("server failed", zap.Error(err))
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildProviders registers every provider with credentials configured,
// wrapping rate-limited ones per config.
func buildProviders(cfg *config.Config, logger *zap.Logger) *llm.Registry {
	registry := llm.NewRegistry()

	register := func(p llm.Provider, pc config.ProviderConfig) {
		if pc.RPS > 0 {
			burst := pc.Burst
			if burst <= 0 {
				burst = 1
			}
			p = llm.RateLimited(p, pc.RPS, burst)
		}
		registry.Register(p)
	}

	if pc := cfg.Providers.OpenAI; pc.Enabled() {
		register(openai.New(openai.Config{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
			Timeout: pc.Timeout,
		}, logger), pc)
	}
	if pc := cfg.Providers.Anthropic; pc.Enabled() {
		register(anthropic.New(anthropic.Config{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
			Model:   pc.Model,
			Timeout: pc.Timeout,
		}, logger), pc)
	}

	if cfg.Providers.Default != "" {
		if err := registry.SetDefault(cfg.Providers.Default); err != nil {
			logger.Warn("default provider not configured",
				zap.String("provider", cfg.Providers.Default))
		}
	}
	return registry
}
