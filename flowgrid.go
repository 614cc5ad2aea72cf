// Package flowgrid provides a top-level convenience entry point for
// running workflows with minimal boilerplate.
//
// Usage:
//
//	import "github.com/flowgrid/flowgrid"
//
//	fg, err := flowgrid.New(flowgrid.WithOpenAI("sk-..."))
//	record := fg.Run(ctx, workflow, map[string]any{"name": "ada"})
package flowgrid

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/flowgrid/flowgrid/engine"
	"github.com/flowgrid/flowgrid/internal/metrics"
	"github.com/flowgrid/flowgrid/llm"
	"github.com/flowgrid/flowgrid/llm/providers/anthropic"
	"github.com/flowgrid/flowgrid/llm/providers/openai"
	"github.com/flowgrid/flowgrid/nodes"
	"github.com/flowgrid/flowgrid/types"
)

// Flowgrid bundles a configured engine with its collaborators.
type Flowgrid struct {
	executor  *engine.Executor
	registry  *nodes.Registry
	providers *llm.Registry
	history   *engine.History
	gatherer  *prometheus.Registry
	logger    *zap.Logger
}

type settings struct {
	logger      *zap.Logger
	meter       engine.Meter
	httpClient  *http.Client
	providers   []llm.Provider
	deferred    []func(*zap.Logger) llm.Provider
	defaultProv string
	historySize int
	connections nodes.ConnectionStore
	actions     *nodes.ActionRegistry
	onLog       engine.LogCallback
}

// Option configures the engine created by [New].
type Option func(*settings)

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithMeter wires a credit ledger into every run.
func WithMeter(meter engine.Meter) Option {
	return func(s *settings) { s.meter = meter }
}

// WithHTTPClient sets the client used by api and webhook nodes.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) { s.httpClient = client }
}

// WithProvider registers a pre-built LLM provider. The first registered
// provider becomes the default.
func WithProvider(p llm.Provider) Option {
	return func(s *settings) { s.providers = append(s.providers, p) }
}

// WithOpenAI registers an OpenAI provider with the given API key.
func WithOpenAI(apiKey string) Option {
	return func(s *settings) {
		s.deferred = append(s.deferred, func(logger *zap.Logger) llm.Provider {
			return openai.New(openai.Config{APIKey: apiKey}, logger)
		})
	}
}

// WithAnthropic registers an Anthropic provider with the given API key.
func WithAnthropic(apiKey string) Option {
	return func(s *settings) {
		s.deferred = append(s.deferred, func(logger *zap.Logger) llm.Provider {
			return anthropic.New(anthropic.Config{APIKey: apiKey}, logger)
		})
	}
}

// WithDefaultProvider names the provider AI nodes use when their config
// does not pick one.
func WithDefaultProvider(name string) Option {
	return func(s *settings) { s.defaultProv = name }
}

// WithHistorySize bounds the in-memory execution history.
func WithHistorySize(n int) Option {
	return func(s *settings) { s.historySize = n }
}

// WithConnections wires the store integration nodes resolve connections
// from.
func WithConnections(store nodes.ConnectionStore) Option {
	return func(s *settings) { s.connections = store }
}

// WithActions wires the registry of third-party actions available to
// integration nodes.
func WithActions(actions *nodes.ActionRegistry) Option {
	return func(s *settings) { s.actions = actions }
}

// WithLogCallback streams per-node log transitions to the given observer.
func WithLogCallback(cb engine.LogCallback) Option {
	return func(s *settings) { s.onLog = cb }
}

// New assembles a ready-to-run engine. All options are optional; a bare
// New() runs every node type except AI, which needs a provider.
func New(opts ...Option) (*Flowgrid, error) {
	s := &settings{
		logger: zap.NewNop(),
		meter:  engine.NopMeter{},
	}
	for _, opt := range opts {
		opt(s)
	}

	providerRegistry := llm.NewRegistry()
	for _, p := range s.providers {
		providerRegistry.Register(p)
	}
	// Key-based shortcuts build late so they share the configured logger.
	for _, build := range s.deferred {
		providerRegistry.Register(build(s.logger))
	}
	if s.defaultProv != "" {
		if err := providerRegistry.SetDefault(s.defaultProv); err != nil {
			return nil, err
		}
	}

	registry := nodes.DefaultRegistry(nodes.Deps{
		Logger:      s.logger,
		HTTPClient:  s.httpClient,
		Providers:   providerRegistry,
		Connections: s.connections,
		Actions:     s.actions,
	})

	history := engine.NewHistory(s.historySize)
	gatherer := prometheus.NewRegistry()

	executor := engine.NewExecutor(registry,
		engine.WithLogger(s.logger),
		engine.WithMeter(s.meter),
		engine.WithHistory(history),
		engine.WithMetrics(metrics.New(gatherer)),
		engine.WithLogCallback(s.onLog),
	)

	return &Flowgrid{
		executor:  executor,
		registry:  registry,
		providers: providerRegistry,
		history:   history,
		gatherer:  gatherer,
		logger:    s.logger,
	}, nil
}

// Run executes a workflow document once.
func (f *Flowgrid) Run(ctx context.Context, w *types.Workflow, input map[string]any) *types.ExecutionRecord {
	return f.executor.Execute(ctx, w.Nodes, w.Edges, input)
}

// Executor returns the underlying executor.
func (f *Flowgrid) Executor() *engine.Executor { return f.executor }

// Registry returns the node handler registry.
func (f *Flowgrid) Registry() *nodes.Registry { return f.registry }

// Providers returns the LLM provider registry.
func (f *Flowgrid) Providers() *llm.Registry { return f.providers }

// History returns the bounded execution history.
func (f *Flowgrid) History() *engine.History { return f.history }

// Gatherer returns the Prometheus registry holding the engine collectors.
func (f *Flowgrid) Gatherer() *prometheus.Registry { return f.gatherer }
