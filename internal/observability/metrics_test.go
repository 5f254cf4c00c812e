package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
)

func TestNewMetrics(t *testing.T) {
	mp := metric.NewMeterProvider()
	defer mp.Shutdown(context.Background()) //nolint:errcheck

	m, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.NotNil(t, m.RequestCount)
	assert.NotNil(t, m.DBQueryDuration)
	assert.NotNil(t, m.PoolTotalConns)
	assert.NotNil(t, m.CountDegraded)
}

// Every recorder must tolerate a nil receiver so components can run with
// telemetry disabled.
func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordRequest(ctx, "search", "success", 1.5)
		m.RecordDBQuery(ctx, "search", 2.0, errors.New("boom"))
		m.RecordPoolStats(ctx, "librarian", 10, 3)
		m.RecordSearchResults(ctx, "librarian", 7)
		m.RecordCountDegraded(ctx, "librarian")
		m.RecordPredicateDropped(ctx, "channel")
		m.RecordError(ctx, "timeout", "search")
	})
}

func TestNewTelemetry_MetricsOnly(t *testing.T) {
	tel, err := NewTelemetry(context.Background(), Config{EnableMetrics: true})
	require.NoError(t, err)

	assert.NotNil(t, tel.Metrics)
	assert.Nil(t, tel.Tracer)
	assert.NoError(t, tel.Shutdown(context.Background()))
}
