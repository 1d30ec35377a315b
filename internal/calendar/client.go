package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/freebusy/internal/instrumentation"
)

// Client wraps the Google Calendar service
type Client struct {
	svc     *calendar.Service
	metrics *instrumentation.Metrics
}

type clientOptions struct {
	endpoint string
	metrics  *instrumentation.Metrics
}

// Option configures NewClient
type Option func(*clientOptions)

// WithEndpoint overrides the Calendar API base URL
func WithEndpoint(endpoint string) Option {
	return func(o *clientOptions) { o.endpoint = endpoint }
}

// WithMetrics records a Google API operation for every call
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(o *clientOptions) { o.metrics = m }
}

// NewClient creates a Calendar client authenticated by ts.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors
func NewClient(ctx context.Context, ts oauth2.TokenSource, opts ...Option) (*Client, error) {
	if ts == nil {
		return nil, fmt.Errorf("token source cannot be nil")
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := oauth2.NewClient(ctx, ts)
	if transport, ok := httpClient.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		}
	}

	svcOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if o.endpoint != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(o.endpoint))
	}

	svc, err := calendar.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{svc: svc, metrics: o.metrics}, nil
}

// ListCalendars lists all calendars on the user's calendar list, in server
// order, following page tokens
func (c *Client) ListCalendars(ctx context.Context) (calendars []CalendarInfo, err error) {
	done := c.observe(ctx, instrumentation.OperationCalendarList)
	defer func() { done(err) }()

	err = c.svc.CalendarList.List().Context(ctx).Pages(ctx, func(list *calendar.CalendarList) error {
		for _, entry := range list.Items {
			calendars = append(calendars, toCalendarInfo(entry))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	return calendars, nil
}

// QueryFreeBusy returns the busy intervals for each requested calendar, keyed
// by calendar id
func (c *Client) QueryFreeBusy(ctx context.Context, req FreeBusyRequest) (infos map[string]FreeBusyInfo, err error) {
	done := c.observe(ctx, instrumentation.OperationFreeBusyQuery)
	defer func() { done(err) }()

	items := make([]*calendar.FreeBusyRequestItem, len(req.Items))
	for i, id := range req.Items {
		items[i] = &calendar.FreeBusyRequestItem{Id: id}
	}

	query := &calendar.FreeBusyRequest{
		TimeMin:  req.TimeMin.Format(time.RFC3339),
		TimeMax:  req.TimeMax.Format(time.RFC3339),
		TimeZone: req.TimeZone,
		Items:    items,
	}

	result, err := c.svc.Freebusy.Query(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to query freebusy: %w", err)
	}

	infos = make(map[string]FreeBusyInfo, len(result.Calendars))
	for id, cal := range result.Calendars {
		info, err := toFreeBusyInfo(id, cal)
		if err != nil {
			return nil, fmt.Errorf("failed to parse freebusy response: %w", err)
		}
		infos[id] = info
	}

	return infos, nil
}

// observe starts a span for operation and returns a func that ends it and
// records the metric.
func (c *Client) observe(ctx context.Context, operation string) func(error) {
	start := time.Now()
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, operation)

	return func(err error) {
		instrumentation.EndSpan(span, err)

		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, operation, status, time.Since(start))
	}
}

// APIStatus returns the HTTP status of a Google API error wrapped in err, or 0.
func APIStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
