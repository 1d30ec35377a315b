package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for spans created by freebusy.
const TracerName = "github.com/teemow/freebusy"

// Span attribute keys.
const (
	SpanAttrService    = "google.service"
	SpanAttrOperation  = "google.operation"
	SpanAttrCalendarID = "freebusy.calendar_id"
	SpanAttrUser       = "freebusy.user"
	SpanAttrBusyRanges = "freebusy.busy_ranges"
	SpanAttrUsers      = "freebusy.users"

	SpanAttrHTTPMethod = "http.request.method"
	SpanAttrHTTPRoute  = "http.route"
	SpanAttrHTTPStatus = "http.response.status_code"
)

// SpanAttributeBuilder collects span attributes with consistent keys.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{attrs: make([]attribute.KeyValue, 0, 4)}
}

// WithUser adds an already anonymized user identifier.
func (b *SpanAttributeBuilder) WithUser(userHash string) *SpanAttributeBuilder {
	if userHash != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrUser, userHash))
	}
	return b
}

func (b *SpanAttributeBuilder) WithCalendar(calendarID string) *SpanAttributeBuilder {
	if calendarID != "" {
		b.attrs = append(b.attrs, attribute.String(SpanAttrCalendarID, calendarID))
	}
	return b
}

func (b *SpanAttributeBuilder) WithBusyRanges(n int) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Int(SpanAttrBusyRanges, n))
	return b
}

func (b *SpanAttributeBuilder) WithUsers(n int) *SpanAttributeBuilder {
	b.attrs = append(b.attrs, attribute.Int(SpanAttrUsers, n))
	return b
}

func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

// StartSpan starts an internal span on the global tracer provider.
// The caller ends it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartGoogleAPISpan starts a client span named google.<service>.<operation>.
func StartGoogleAPISpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+2)
	all = append(all,
		attribute.String(SpanAttrService, service),
		attribute.String(SpanAttrOperation, operation),
	)
	all = append(all, attrs...)

	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "google."+service+"."+operation,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartServerSpan starts a server span for an incoming request. The route is
// not known yet; SetHTTPSpanResult names the span once it is.
func StartServerSpan(ctx context.Context, method string) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, method,
		trace.WithAttributes(attribute.String(SpanAttrHTTPMethod, method)),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// SetHTTPSpanResult renames span to "<method> <route>" and records the
// response status. 5xx responses mark the span as failed.
func SetHTTPSpanResult(span trace.Span, method, route string, status int) {
	span.SetName(method + " " + route)
	span.SetAttributes(
		attribute.String(SpanAttrHTTPRoute, route),
		attribute.Int(SpanAttrHTTPStatus, status),
	)
	if status >= 500 {
		span.SetStatus(codes.Error, "")
	}
}

// EndSpan sets the span status from err and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// TraceID returns the current trace id, or "" without a valid span.
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
