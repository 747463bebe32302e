package telemetry

import (
	"context"
	"testing"

	"streamhub/modules/keys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestTokenMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewTokenMetrics(mp, "test")
	require.NoError(t, err)
	m.Issued(keys.DomainAuth)
	m.Issued(keys.DomainPublish)
	m.Rejected(keys.DomainAuth, "token expired")

	sums := collect(t, reader)
	assert.Equal(t, int64(2), sums["tokens_issued_total"])
	assert.Equal(t, int64(1), sums["tokens_rejected_total"])
}

func TestHTTPMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewHTTPMetrics(mp, "test")
	require.NoError(t, err)
	m.RecordRequest(context.Background(), "GET", "/api/stream/{streamId}", "200", 1.5, 120)
	m.RecordRequest(context.Background(), "GET", "/api/stream/{streamId}", "404", 0.5, 0)

	assert.Equal(t, int64(2), collect(t, reader)["http_server_requests_total"])
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
