package workflow

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// meters aggregates the workflow's OpenTelemetry instruments. When no
// meter provider is installed these are no-ops, so the orchestrator
// records unconditionally.
type meters struct {
	runs         metric.Int64Counter
	failures     metric.Int64Counter
	cacheHits    metric.Int64Counter
	nodeDuration metric.Float64Histogram
}

func newMeters(logger *zap.Logger) *meters {
	meter := otel.Meter("advisord.workflow")
	m := &meters{}
	var err error

	if m.runs, err = meter.Int64Counter("advisord.workflow.runs",
		metric.WithDescription("Workflow runs started")); err != nil {
		logger.Warn("failed to create runs counter", zap.Error(err))
	}
	if m.failures, err = meter.Int64Counter("advisord.workflow.failures",
		metric.WithDescription("Workflow runs that degraded to the error answer")); err != nil {
		logger.Warn("failed to create failures counter", zap.Error(err))
	}
	if m.cacheHits, err = meter.Int64Counter("advisord.workflow.cache_hits",
		metric.WithDescription("Semantic cache hits")); err != nil {
		logger.Warn("failed to create cache hits counter", zap.Error(err))
	}
	if m.nodeDuration, err = meter.Float64Histogram("advisord.workflow.node_duration_ms",
		metric.WithDescription("Per-node execution time"),
		metric.WithUnit("ms")); err != nil {
		logger.Warn("failed to create node duration histogram", zap.Error(err))
	}
	return m
}

func (m *meters) recordNode(ctx context.Context, node string, ms float64) {
	if m.nodeDuration != nil {
		m.nodeDuration.Record(ctx, ms, metric.WithAttributes(attribute.String("node", node)))
	}
}

func (m *meters) recordRun(ctx context.Context, intent Intent) {
	if m.runs != nil {
		m.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", string(intent))))
	}
}

func (m *meters) recordFailure(ctx context.Context, node string) {
	if m.failures != nil {
		m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("node", node)))
	}
}

func (m *meters) recordCacheHit(ctx context.Context) {
	if m.cacheHits != nil {
		m.cacheHits.Add(ctx, 1)
	}
}
