package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flowgrid/flowgrid/internal/metrics"
	"github.com/flowgrid/flowgrid/nodes"
	"github.com/flowgrid/flowgrid/types"
)

// LogCallback observes execution log transitions as they happen: once when
// a node starts and once when it completes or fails. Callbacks run inline
// on the executor goroutine; a panicking callback is recovered and must
// not fail the run.
type LogCallback func(log *types.ExecutionLog)

// Executor runs workflow graphs sequentially in topological order.
type Executor struct {
	registry *nodes.Registry
	logger   *zap.Logger
	meter    Meter
	history  *History
	metrics  *metrics.Metrics
	onLog    LogCallback
}

// Option customizes an Executor.
type Option func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithMeter wires a credit ledger into the run lifecycle.
func WithMeter(meter Meter) Option {
	return func(e *Executor) { e.meter = meter }
}

// WithHistory keeps finished execution records in the given history.
func WithHistory(history *History) Option {
	return func(e *Executor) { e.history = history }
}

// WithMetrics sets the Prometheus collectors to record into.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithLogCallback registers a per-log-transition observer, typically used
// to stream progress to a client.
func WithLogCallback(cb LogCallback) Option {
	return func(e *Executor) { e.onLog = cb }
}

// NewExecutor creates an executor dispatching through the given registry.
func NewExecutor(registry *nodes.Registry, opts ...Option) *Executor {
	e := &Executor{
		registry: registry,
		logger:   zap.NewNop(),
		meter:    NopMeter{},
		metrics:  metrics.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the workflow once and always returns a non-nil record.
// Structural problems (cyclic graph, dangling edges, unknown node types,
// insufficient credits) fail the run before any node executes; a node
// failure halts the run at that node with a diagnosis attached.
func (e *Executor) Execute(ctx context.Context, nodeList []types.Node, edges []types.Edge, input map[string]any) *types.ExecutionRecord {
	record := &types.ExecutionRecord{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Logs:      []*types.ExecutionLog{},
	}
	logger := e.logger.With(zap.String("execution_id", record.ID))
	logger.Info("workflow execution started",
		zap.Int("nodes", len(nodeList)),
		zap.Int("edges", len(edges)),
	)

	g, err := buildGraph(nodeList, edges)
	if err != nil {
		return e.finish(record, logger, err.Error())
	}
	order, err := g.topologicalOrder()
	if err != nil {
		return e.finish(record, logger, err.Error())
	}
	// Resolve every handler up front so an unknown node type aborts the
	// run before any side effects.
	handlers := make(map[string]nodes.Handler, len(order))
	for _, id := range order {
		h, err := e.registry.Get(g.nodes[id].Type)
		if err != nil {
			return e.finish(record, logger, err.Error())
		}
		handlers[id] = h
	}

	cost := WorkflowCost(nodeList)
	ok, err := e.meter.HasEnoughCredits(ctx, cost)
	if err != nil {
		return e.finish(record, logger, fmt.Sprintf("credit check failed: %v", err))
	}
	if !ok {
		return e.finish(record, logger,
			types.NewError(types.ErrInsufficientCredits,
				fmt.Sprintf("insufficient credits: this workflow costs %d", cost)).Error())
	}

	outputs := make(map[string]map[string]any, len(order))
	globalContext := make(map[string]any)
	spent := 0

	for _, id := range order {
		node := g.nodes[id]
		inputs := assembleInputs(node, g.incoming[id], outputs, input)

		log := &types.ExecutionLog{
			NodeID:    node.ID,
			NodeName:  node.Name(),
			Status:    types.StatusRunning,
			Input:     inputs,
			StartedAt: time.Now(),
		}
		record.Logs = append(record.Logs, log)
		e.notify(log)

		result := handlers[id].Execute(ctx, &nodes.NodeContext{
			NodeID:        node.ID,
			Inputs:        inputs,
			Config:        node.Config,
			GlobalContext: globalContext,
		})
		log.CompletedAt = time.Now()
		log.Duration = log.CompletedAt.Sub(log.StartedAt)
		spent += CostOf(node.Type)
		e.metrics.NodeDuration.WithLabelValues(string(node.Type)).Observe(log.Duration.Seconds())

		if result == nil || !result.Success {
			message := "node returned no result"
			if result != nil {
				message = result.Error
			}
			log.Status = types.StatusFailed
			log.Error = message
			e.notify(log)
			e.metrics.NodeExecutions.WithLabelValues(string(node.Type), string(types.StatusFailed)).Inc()
			logger.Warn("node failed",
				zap.String("node_id", node.ID),
				zap.String("node_type", string(node.Type)),
				zap.String("error", message),
			)

			record.ErrorAnalysis = Diagnose(node, message, g, inputs)
			e.deduct(ctx, logger, spent)
			return e.finish(record, logger,
				fmt.Sprintf("node %q failed: %s", node.Name(), message))
		}

		log.Status = types.StatusCompleted
		log.Output = result.Output
		e.notify(log)
		e.metrics.NodeExecutions.WithLabelValues(string(node.Type), string(types.StatusCompleted)).Inc()

		outputs[id] = result.Output
		for k, v := range result.Output {
			globalContext[k] = v
		}
	}

	final := finalOutput(g, order, outputs)
	e.deduct(ctx, logger, spent)
	return e.finish(record, logger, "", withOutput(final))
}

// assembleInputs builds a node's input map from its incoming edges. An
// edge with a source handle copies that single output key (renamed to the
// target handle when one is set), falling back to the whole source output
// when the handle is absent; an edge without a handle spreads the whole
// source output. The run's designated input additionally seeds every
// input-typed node, with edge-supplied values winning on collision.
func assembleInputs(node *types.Node, incoming []types.Edge, outputs map[string]map[string]any, graphInput map[string]any) map[string]any {
	inputs := make(map[string]any)
	for _, edge := range incoming {
		source, ok := outputs[edge.Source]
		if !ok {
			continue
		}
		if edge.SourceHandle != "" {
			if value, present := source[edge.SourceHandle]; present {
				key := edge.SourceHandle
				if edge.TargetHandle != "" {
					key = edge.TargetHandle
				}
				inputs[key] = value
				continue
			}
		}
		for k, v := range source {
			inputs[k] = v
		}
	}
	if node.Type == types.NodeInput {
		for k, v := range graphInput {
			if _, present := inputs[k]; !present {
				inputs[k] = v
			}
		}
	}
	return inputs
}

// finalOutput merges the outputs of every output-typed node, falling back
// to the last executed node when the workflow declares none.
func finalOutput(g *graph, order []string, outputs map[string]map[string]any) map[string]any {
	merged := make(map[string]any)
	found := false
	for _, id := range order {
		if g.nodes[id].Type != types.NodeOutput {
			continue
		}
		found = true
		for k, v := range outputs[id] {
			merged[k] = v
		}
	}
	if found {
		return merged
	}
	if len(order) > 0 {
		return outputs[order[len(order)-1]]
	}
	return map[string]any{}
}

func (e *Executor) deduct(ctx context.Context, logger *zap.Logger, amount int) {
	if amount == 0 {
		return
	}
	if err := e.meter.DeductCredits(ctx, amount); err != nil {
		// The run already happened; a ledger failure is logged, not fatal.
		logger.Error("credit deduction failed", zap.Int("amount", amount), zap.Error(err))
	}
}

func (e *Executor) notify(log *types.ExecutionLog) {
	if e.onLog == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("log callback panicked", zap.Any("panic", r))
		}
	}()
	e.onLog(log)
}

type finishOpt func(*types.ExecutionRecord)

func withOutput(output map[string]any) finishOpt {
	return func(r *types.ExecutionRecord) {
		r.Success = true
		r.Output = output
	}
}

// finish stamps the terminal state onto the record, records metrics, and
// stores it in history. A non-empty errMessage marks the run failed.
func (e *Executor) finish(record *types.ExecutionRecord, logger *zap.Logger, errMessage string, opts ...finishOpt) *types.ExecutionRecord {
	record.Duration = time.Since(record.StartedAt)
	if errMessage != "" {
		record.Success = false
		record.Error = errMessage
	}
	for _, opt := range opts {
		opt(record)
	}

	status := types.StatusFailed
	if record.Success {
		status = types.StatusCompleted
	}
	e.metrics.RunsTotal.WithLabelValues(string(status)).Inc()
	e.metrics.RunDuration.Observe(record.Duration.Seconds())

	if record.Success {
		logger.Info("workflow execution completed",
			zap.Duration("duration", record.Duration),
			zap.Int("executed_nodes", len(record.Logs)),
		)
	} else {
		logger.Warn("workflow execution failed",
			zap.Duration("duration", record.Duration),
			zap.String("error", record.Error),
		)
	}

	if e.history != nil {
		e.history.Add(record)
	}
	return record
}
