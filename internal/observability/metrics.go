package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all the metrics instruments for the search backend. A nil
// *Metrics is a no-op, so components can run without telemetry wired.
type Metrics struct {
	// Request metrics
	RequestCount    metric.Int64Counter
	RequestDuration metric.Float64Histogram

	// Database metrics
	DBQueryCount    metric.Int64Counter
	DBQueryDuration metric.Float64Histogram
	PoolTotalConns  metric.Int64Gauge
	PoolIdleConns   metric.Int64Gauge

	// Search semantics metrics
	SearchResultCount metric.Int64Histogram
	CountDegraded     metric.Int64Counter
	PredicateDropped  metric.Int64Counter

	// Error metrics
	ErrorCount metric.Int64Counter
}

// NewMetrics creates and registers all metrics instruments
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RequestCount, err = meter.Int64Counter(
		"quotesearch.request.count",
		metric.WithDescription("Total number of search API requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request count metric: %w", err)
	}

	m.RequestDuration, err = meter.Float64Histogram(
		"quotesearch.request.duration",
		metric.WithDescription("Duration of search API requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration metric: %w", err)
	}

	m.DBQueryCount, err = meter.Int64Counter(
		"quotesearch.db.query.count",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create db query count metric: %w", err)
	}

	m.DBQueryDuration, err = meter.Float64Histogram(
		"quotesearch.db.query.duration",
		metric.WithDescription("Duration of database queries in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create db query duration metric: %w", err)
	}

	m.PoolTotalConns, err = meter.Int64Gauge(
		"quotesearch.db.pool.total",
		metric.WithDescription("Total connections in a tenant pool"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool total metric: %w", err)
	}

	m.PoolIdleConns, err = meter.Int64Gauge(
		"quotesearch.db.pool.idle",
		metric.WithDescription("Idle connections in a tenant pool"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool idle metric: %w", err)
	}

	m.SearchResultCount, err = meter.Int64Histogram(
		"quotesearch.search.results",
		metric.WithDescription("Number of video groups returned per search"),
		metric.WithUnit("{group}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search result count metric: %w", err)
	}

	m.CountDegraded, err = meter.Int64Counter(
		"quotesearch.search.count_degraded",
		metric.WithDescription("Searches whose totals were degraded to zero by a count-query timeout"),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create count degraded metric: %w", err)
	}

	m.PredicateDropped, err = meter.Int64Counter(
		"quotesearch.search.predicate_dropped",
		metric.WithDescription("Filter predicates silently dropped during validation"),
		metric.WithUnit("{predicate}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create predicate dropped metric: %w", err)
	}

	m.ErrorCount, err = meter.Int64Counter(
		"quotesearch.error.count",
		metric.WithDescription("Total number of errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error count metric: %w", err)
	}

	return m, nil
}

// RecordRequest records metrics for one API request
func (m *Metrics) RecordRequest(ctx context.Context, op string, status string, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("status", status),
	)
	m.RequestCount.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, durationMs, attrs)
}

// RecordDBQuery records metrics for a database query
func (m *Metrics) RecordDBQuery(ctx context.Context, queryType string, durationMs float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("query.type", queryType),
		attribute.String("status", status),
	)
	m.DBQueryCount.Add(ctx, 1, attrs)
	m.DBQueryDuration.Record(ctx, durationMs, attrs)
}

// RecordPoolStats records a tenant pool's connection gauges
func (m *Metrics) RecordPoolStats(ctx context.Context, tenantID string, total, idle int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("tenant", tenantID))
	m.PoolTotalConns.Record(ctx, total, attrs)
	m.PoolIdleConns.Record(ctx, idle, attrs)
}

// RecordSearchResults records the number of groups a search returned
func (m *Metrics) RecordSearchResults(ctx context.Context, tenantID string, count int64) {
	if m == nil {
		return
	}
	m.SearchResultCount.Record(ctx, count,
		metric.WithAttributes(attribute.String("tenant", tenantID)))
}

// RecordCountDegraded records a count-query timeout degraded to zero totals
func (m *Metrics) RecordCountDegraded(ctx context.Context, tenantID string) {
	if m == nil {
		return
	}
	m.CountDegraded.Add(ctx, 1,
		metric.WithAttributes(attribute.String("tenant", tenantID)))
}

// RecordPredicateDropped records a silently dropped filter predicate
func (m *Metrics) RecordPredicateDropped(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.PredicateDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("predicate", kind)))
}

// RecordError records an error occurrence
func (m *Metrics) RecordError(ctx context.Context, errorType string, operation string) {
	if m == nil {
		return
	}
	m.ErrorCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.type", errorType),
		attribute.String("operation", operation),
	))
}
