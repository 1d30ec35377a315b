package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T, detailedLabels bool) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"), detailedLabels)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			out[md.Name] = md.Data
		}
	}
	return out
}

func sumByAttr(t *testing.T, data metricdata.Aggregation, key, value string) int64 {
	t.Helper()

	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)

	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	ctx := context.Background()

	m.RecordHTTPRequest(ctx, "GET", "/availability", 200, 100*time.Millisecond)
	m.RecordHTTPRequest(ctx, "GET", "/availability", 400, 5*time.Millisecond)
	m.RecordHTTPRequest(ctx, "GET", "/freebusy/{user}", 200, 50*time.Millisecond)

	data := collect(t, reader)
	assert.Equal(t, int64(2), sumByAttr(t, data["http_requests_total"], attrRoute, "/availability"))
	assert.Equal(t, int64(1), sumByAttr(t, data["http_requests_total"], attrRoute, "/freebusy/{user}"))
	assert.Equal(t, int64(1), sumByAttr(t, data["http_requests_total"], attrStatus, "400"))

	hist, ok := data["http_request_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestMetrics_RecordGoogleAPIOperation(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	ctx := context.Background()

	m.RecordGoogleAPIOperation(ctx, ServiceCalendar, OperationCalendarList, StatusSuccess, 200*time.Millisecond)
	m.RecordGoogleAPIOperation(ctx, ServiceCalendar, OperationFreeBusyQuery, StatusError, 500*time.Millisecond)
	m.RecordGoogleAPIOperation(ctx, ServiceOAuth, OperationTokenExchange, StatusSuccess, 100*time.Millisecond)

	data := collect(t, reader)
	ops := data["google_api_operations_total"]
	assert.Equal(t, int64(2), sumByAttr(t, ops, attrService, ServiceCalendar))
	assert.Equal(t, int64(1), sumByAttr(t, ops, attrOperation, OperationFreeBusyQuery))
	assert.Equal(t, int64(1), sumByAttr(t, ops, attrStatus, StatusError))
}

func TestMetrics_RecordOAuth(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	ctx := context.Background()

	m.RecordOAuthAuth(ctx, OAuthResultReused)
	m.RecordOAuthAuth(ctx, OAuthResultSuccess)
	m.RecordOAuthAuth(ctx, OAuthResultFailure)
	m.RecordOAuthTokenRefresh(ctx, OAuthResultSuccess)

	data := collect(t, reader)
	assert.Equal(t, int64(1), sumByAttr(t, data["oauth_auth_total"], attrResult, OAuthResultReused))
	assert.Equal(t, int64(1), sumByAttr(t, data["oauth_auth_total"], attrResult, OAuthResultFailure))
	assert.Equal(t, int64(1), sumByAttr(t, data["oauth_token_refresh_total"], attrResult, OAuthResultSuccess))
}

func TestMetrics_RecordFreeBusyQuery_UserLabel(t *testing.T) {
	tests := []struct {
		name           string
		detailedLabels bool
		wantUser       int64
	}{
		{name: "user label omitted by default", detailedLabels: false, wantUser: 0},
		{name: "user label with detailed labels", detailedLabels: true, wantUser: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, reader := newTestMetrics(t, tt.detailedLabels)
			m.RecordFreeBusyQuery(context.Background(), StatusSuccess, "user:abcd", 3, time.Second)

			data := collect(t, reader)
			queries := data["freebusy_queries_total"]
			assert.Equal(t, int64(1), sumByAttr(t, queries, attrStatus, StatusSuccess))
			assert.Equal(t, tt.wantUser, sumByAttr(t, queries, attrUser, "user:abcd"))

			ranges, ok := data["freebusy_busy_ranges"].(metricdata.Histogram[int64])
			require.True(t, ok)
			require.Len(t, ranges.DataPoints, 1)
			assert.Equal(t, int64(3), ranges.DataPoints[0].Sum)
		})
	}
}

func TestMetrics_RecordAvailability(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	ctx := context.Background()

	m.RecordAvailability(ctx, StatusSuccess, time.Second)
	m.RecordAvailability(ctx, StatusError, time.Second)

	data := collect(t, reader)
	assert.Equal(t, int64(1), sumByAttr(t, data["availability_computations_total"], attrStatus, StatusSuccess))
	assert.Equal(t, int64(1), sumByAttr(t, data["availability_computations_total"], attrStatus, StatusError))
}

func TestMetrics_NilSafe(t *testing.T) {
	ctx := context.Background()

	for _, m := range []*Metrics{nil, {}} {
		assert.NotPanics(t, func() {
			m.RecordHTTPRequest(ctx, "GET", "/", 200, time.Millisecond)
			m.RecordGoogleAPIOperation(ctx, ServiceCalendar, OperationCalendarList, StatusSuccess, time.Millisecond)
			m.RecordOAuthAuth(ctx, OAuthResultSuccess)
			m.RecordOAuthTokenRefresh(ctx, OAuthResultSuccess)
			m.RecordFreeBusyQuery(ctx, StatusSuccess, "", 0, time.Millisecond)
			m.RecordAvailability(ctx, StatusSuccess, time.Millisecond)
		})
	}
}
