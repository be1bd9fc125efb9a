package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SchemaCompileMetrics holds custom metrics for schema compilation.
type SchemaCompileMetrics struct {
	compileCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	durationHist    metric.Float64Histogram
	lastSuccessUnix atomic.Int64
	tableCount      atomic.Int64
	typeCount       atomic.Int64
}

// InitSchemaCompileMetrics initializes schema compilation metrics.
func InitSchemaCompileMetrics(logger *slog.Logger) (*SchemaCompileMetrics, error) {
	meter := otel.Meter("tablegraph")

	compileCounter, err := meter.Int64Counter(
		"schema.compile.total",
		metric.WithDescription("Total number of schema compilation attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema compile counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"schema.compile.errors.total",
		metric.WithDescription("Total number of failed schema compilation attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema compile error counter: %w", err)
	}

	durationHist, err := meter.Float64Histogram(
		"schema.compile.duration",
		metric.WithDescription("Duration of schema compilation attempts in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema compile duration histogram: %w", err)
	}

	lastSuccessGauge, err := meter.Int64ObservableGauge(
		"schema.compile.last_success_unix",
		metric.WithDescription("Unix timestamp of the last successful schema compilation"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema compile last success gauge: %w", err)
	}

	tablesGauge, err := meter.Int64ObservableGauge(
		"schema.tables",
		metric.WithDescription("Number of tables exposed by the compiled schema"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema tables gauge: %w", err)
	}

	typesGauge, err := meter.Int64ObservableGauge(
		"schema.graphql_types",
		metric.WithDescription("Number of GraphQL types in the compiled schema"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema types gauge: %w", err)
	}

	metrics := &SchemaCompileMetrics{
		compileCounter: compileCounter,
		errorCounter:   errorCounter,
		durationHist:   durationHist,
	}

	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			if value := metrics.lastSuccessUnix.Load(); value > 0 {
				observer.ObserveInt64(lastSuccessGauge, value)
			}
			observer.ObserveInt64(tablesGauge, metrics.tableCount.Load())
			observer.ObserveInt64(typesGauge, metrics.typeCount.Load())
			return nil
		},
		lastSuccessGauge, tablesGauge, typesGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register schema compile gauge callback: %w", err)
	}

	logger.Info("schema compile metrics initialized")
	return metrics, nil
}

// RecordCompile records a schema compilation attempt.
func (m *SchemaCompileMetrics) RecordCompile(ctx context.Context, duration time.Duration, success bool, trigger string) {
	attrs := []attribute.KeyValue{
		attribute.String("trigger", trigger),
		attribute.Bool("success", success),
	}

	m.compileCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if !success {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
		return
	}

	m.lastSuccessUnix.Store(time.Now().Unix())
}

// SetSchemaSize publishes the size of the currently served schema.
func (m *SchemaCompileMetrics) SetSchemaSize(tables, graphqlTypes int) {
	m.tableCount.Store(int64(tables))
	m.typeCount.Store(int64(graphqlTypes))
}
