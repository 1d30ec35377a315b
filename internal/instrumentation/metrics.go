package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	attrMethod    = "method"
	attrRoute     = "route"
	attrStatus    = "status"
	attrOperation = "operation"
	attrService   = "service"
	attrResult    = "result"
	attrUser      = "user"
)

var apiDurationBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0}

// Metrics records the service's counters and histograms. The zero value and
// a nil *Metrics drop every observation.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	googleAPIOperationsTotal   metric.Int64Counter
	googleAPIOperationDuration metric.Float64Histogram

	oauthAuthTotal         metric.Int64Counter
	oauthTokenRefreshTotal metric.Int64Counter

	freeBusyQueriesTotal  metric.Int64Counter
	freeBusyQueryDuration metric.Float64Histogram
	freeBusyBusyRanges    metric.Int64Histogram

	availabilityTotal    metric.Int64Counter
	availabilityDuration metric.Float64Histogram

	detailedLabels bool
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	m := &Metrics{detailedLabels: detailedLabels}

	var err error
	if m.httpRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	if m.httpRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	); err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	if m.googleAPIOperationsTotal, err = meter.Int64Counter(
		"google_api_operations_total",
		metric.WithDescription("Total number of Google API operations"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create google_api_operations_total counter: %w", err)
	}

	if m.googleAPIOperationDuration, err = meter.Float64Histogram(
		"google_api_operation_duration_seconds",
		metric.WithDescription("Google API operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(apiDurationBuckets...),
	); err != nil {
		return nil, fmt.Errorf("failed to create google_api_operation_duration_seconds histogram: %w", err)
	}

	if m.oauthAuthTotal, err = meter.Int64Counter(
		"oauth_auth_total",
		metric.WithDescription("Total number of OAuth credential acquisitions"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create oauth_auth_total counter: %w", err)
	}

	if m.oauthTokenRefreshTotal, err = meter.Int64Counter(
		"oauth_token_refresh_total",
		metric.WithDescription("Total number of OAuth token refreshes"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create oauth_token_refresh_total counter: %w", err)
	}

	if m.freeBusyQueriesTotal, err = meter.Int64Counter(
		"freebusy_queries_total",
		metric.WithDescription("Total number of primary calendar free/busy queries"),
		metric.WithUnit("{query}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create freebusy_queries_total counter: %w", err)
	}

	if m.freeBusyQueryDuration, err = meter.Float64Histogram(
		"freebusy_query_duration_seconds",
		metric.WithDescription("End-to-end free/busy query duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(apiDurationBuckets...),
	); err != nil {
		return nil, fmt.Errorf("failed to create freebusy_query_duration_seconds histogram: %w", err)
	}

	if m.freeBusyBusyRanges, err = meter.Int64Histogram(
		"freebusy_busy_ranges",
		metric.WithDescription("Number of busy ranges returned per query"),
		metric.WithUnit("{range}"),
		metric.WithExplicitBucketBoundaries(0, 1, 5, 10, 25, 50, 100),
	); err != nil {
		return nil, fmt.Errorf("failed to create freebusy_busy_ranges histogram: %w", err)
	}

	if m.availabilityTotal, err = meter.Int64Counter(
		"availability_computations_total",
		metric.WithDescription("Total number of common availability computations"),
		metric.WithUnit("{computation}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create availability_computations_total counter: %w", err)
	}

	if m.availabilityDuration, err = meter.Float64Histogram(
		"availability_computation_duration_seconds",
		metric.WithDescription("Common availability computation duration in seconds, including upstream queries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(apiDurationBuckets...),
	); err != nil {
		return nil, fmt.Errorf("failed to create availability_computation_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records one request. route is the router pattern, not the raw path.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrMethod, method),
		attribute.String(attrRoute, route),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordGoogleAPIOperation records a single Google API call.
//
// Parameters:
//   - service: ServiceCalendar or ServiceOAuth
//   - operation: OperationCalendarList, OperationFreeBusyQuery or OperationTokenExchange
//   - status: StatusSuccess or StatusError
func (m *Metrics) RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	if m == nil || m.googleAPIOperationsTotal == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrService, service),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	)
	m.googleAPIOperationsTotal.Add(ctx, 1, attrs)
	m.googleAPIOperationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOAuthAuth records how a credential was acquired: OAuthResultReused
// for a stored token, OAuthResultSuccess or OAuthResultFailure for a consent flow.
func (m *Metrics) RecordOAuthAuth(ctx context.Context, result string) {
	if m == nil || m.oauthAuthTotal == nil {
		return
	}
	m.oauthAuthTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordOAuthTokenRefresh records a token refresh through the persisting token source.
func (m *Metrics) RecordOAuthTokenRefresh(ctx context.Context, result string) {
	if m == nil || m.oauthTokenRefreshTotal == nil {
		return
	}
	m.oauthTokenRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordFreeBusyQuery records a complete primary-calendar query. userHash is
// only attached when detailed labels are enabled.
func (m *Metrics) RecordFreeBusyQuery(ctx context.Context, status, userHash string, busyRanges int, duration time.Duration) {
	if m == nil || m.freeBusyQueriesTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String(attrStatus, status)}
	if m.detailedLabels && userHash != "" {
		attrs = append(attrs, attribute.String(attrUser, userHash))
	}

	opt := metric.WithAttributes(attrs...)
	m.freeBusyQueriesTotal.Add(ctx, 1, opt)
	m.freeBusyQueryDuration.Record(ctx, duration.Seconds(), opt)
	if status == StatusSuccess {
		m.freeBusyBusyRanges.Record(ctx, int64(busyRanges))
	}
}

// RecordAvailability records one common-availability computation.
func (m *Metrics) RecordAvailability(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.availabilityTotal == nil {
		return
	}

	opt := metric.WithAttributes(attribute.String(attrStatus, status))
	m.availabilityTotal.Add(ctx, 1, opt)
	m.availabilityDuration.Record(ctx, duration.Seconds(), opt)
}
