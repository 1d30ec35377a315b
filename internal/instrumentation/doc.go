// Package instrumentation wires OpenTelemetry metrics and tracing for freebusy.
//
// # Metrics
//
// HTTP API:
//   - http_requests_total: requests by method, route pattern and status
//   - http_request_duration_seconds: request latency
//
// Google API:
//   - google_api_operations_total: calendar_list, freebusy_query and
//     token_exchange calls by service and status
//   - google_api_operation_duration_seconds: call latency
//
// OAuth:
//   - oauth_auth_total: credential acquisitions by result (reused, success, failure)
//   - oauth_token_refresh_total: refreshes written back to the token store
//
// Queries:
//   - freebusy_queries_total, freebusy_query_duration_seconds, freebusy_busy_ranges
//   - availability_computations_total, availability_computation_duration_seconds
//
// # Tracing
//
// Spans are created for Google API calls (google.<service>.<operation>), the
// per-user free/busy flow and the availability computation.
//
// # Configuration
//
// DefaultConfig reads:
//   - INSTRUMENTATION_ENABLED (default: true)
//   - METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG (default: 0.1)
//   - OTEL_SERVICE_NAME (default: freebusy)
//   - METRICS_DETAILED_LABELS (default: false)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	provider.Metrics().RecordGoogleAPIOperation(ctx,
//		instrumentation.ServiceCalendar, instrumentation.OperationFreeBusyQuery,
//		instrumentation.StatusSuccess, time.Since(start))
package instrumentation
