package freebusy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/freebusy/internal/calendar"
	"github.com/teemow/freebusy/internal/instrumentation"
	"github.com/teemow/freebusy/internal/logging"
)

// QueryWindow is the length of the window queried by GetFreeBusy.
const QueryWindow = 7 * 24 * time.Hour

// CredentialProvider hands out an authenticated token source per user.
type CredentialProvider interface {
	TokenSource(ctx context.Context, userID string) (oauth2.TokenSource, error)
}

// CalendarService is the subset of the Calendar API used here.
type CalendarService interface {
	ListCalendars(ctx context.Context) ([]calendar.CalendarInfo, error)
	QueryFreeBusy(ctx context.Context, req calendar.FreeBusyRequest) (map[string]calendar.FreeBusyInfo, error)
}

// ServiceFactory builds a CalendarService for a token source.
type ServiceFactory interface {
	NewCalendarService(ctx context.Context, ts oauth2.TokenSource) (CalendarService, error)
}

// ServiceFactoryFunc adapts a function to ServiceFactory.
type ServiceFactoryFunc func(ctx context.Context, ts oauth2.TokenSource) (CalendarService, error)

func (f ServiceFactoryFunc) NewCalendarService(ctx context.Context, ts oauth2.TokenSource) (CalendarService, error) {
	return f(ctx, ts)
}

// ClientFactory returns a ServiceFactory backed by calendar.NewClient.
func ClientFactory(opts ...calendar.Option) ServiceFactory {
	return ServiceFactoryFunc(func(ctx context.Context, ts oauth2.TokenSource) (CalendarService, error) {
		client, err := calendar.NewClient(ctx, ts, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	})
}

// Window returns [now, now+QueryWindow).
func Window(now time.Time) calendar.TimeRange {
	return calendar.TimeRange{Start: now, End: now.Add(QueryWindow)}
}

// CalendarBusy is the busy time of a user's primary calendar.
type CalendarBusy struct {
	CalendarID string
	// TimeZone is the calendar's IANA zone; it may be empty.
	TimeZone string
	Busy     []calendar.TimeRange
}

// Service runs the credential, primary calendar and free/busy steps for a user.
type Service struct {
	credentials CredentialProvider
	factory     ServiceFactory
	now         func() time.Time
	logger      *slog.Logger
	metrics     *instrumentation.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics records free/busy queries on m.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService returns a Service using credentials for tokens and factory for
// calendar clients.
func NewService(credentials CredentialProvider, factory ServiceFactory, opts ...Option) *Service {
	s := &Service{
		credentials: credentials,
		factory:     factory,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.WithService(s.logger, instrumentation.ServiceCalendar)
	return s
}

// GetFreeBusy returns the busy intervals of the user's primary calendar for
// the next seven days, in the order the server returned them.
func (s *Service) GetFreeBusy(ctx context.Context, userID string) ([]calendar.TimeRange, error) {
	result, err := s.Busy(ctx, userID, Window(s.now()))
	if err != nil {
		return nil, err
	}
	return result.Busy, nil
}

// Busy returns the busy intervals of the user's primary calendar within window.
func (s *Service) Busy(ctx context.Context, userID string, window calendar.TimeRange) (result *CalendarBusy, err error) {
	start := time.Now()
	userHash := logging.AnonymizeUser(userID)
	logger := logging.WithOperation(logging.WithUser(s.logger, userID), "freebusy_query")

	ctx, span := instrumentation.StartSpan(ctx, "freebusy.query",
		instrumentation.NewSpanAttributeBuilder().WithUser(userHash).Build()...)
	defer func() {
		status := instrumentation.StatusSuccess
		busy := 0
		if err != nil {
			status = instrumentation.StatusError
			logger.Debug("free/busy query failed", logging.Err(err))
		} else {
			busy = len(result.Busy)
			span.SetAttributes(instrumentation.NewSpanAttributeBuilder().
				WithCalendar(result.CalendarID).WithBusyRanges(busy).Build()...)
		}
		instrumentation.EndSpan(span, err)
		s.metrics.RecordFreeBusyQuery(ctx, status, userHash, busy, time.Since(start))
	}()

	ts, err := s.credentials.TokenSource(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire credential: %w", err)
	}

	svc, err := s.factory.NewCalendarService(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	primary, ok, err := ResolvePrimaryCalendar(ctx, svc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoPrimaryCalendar
	}

	infos, err := svc.QueryFreeBusy(ctx, calendar.FreeBusyRequest{
		TimeMin:  window.Start,
		TimeMax:  window.End,
		TimeZone: "",
		Items:    []string{primary.ID},
	})
	if err != nil {
		return nil, err
	}

	info, ok := infos[primary.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCalendarMissing, primary.ID)
	}
	if len(info.Errors) > 0 {
		return nil, &CalendarError{CalendarID: primary.ID, Reasons: info.Errors}
	}

	logger.Debug("free/busy query complete", logging.Calendar(primary.ID), "busy", len(info.Busy))

	return &CalendarBusy{
		CalendarID: primary.ID,
		TimeZone:   primary.TimeZone,
		Busy:       info.Busy,
	}, nil
}

// ResolvePrimaryCalendar lists the user's calendars and returns the first
// entry flagged primary. ok is false when there is none.
func ResolvePrimaryCalendar(ctx context.Context, svc CalendarService) (info calendar.CalendarInfo, ok bool, err error) {
	cals, err := svc.ListCalendars(ctx)
	if err != nil {
		return calendar.CalendarInfo{}, false, err
	}
	for _, c := range cals {
		if c.Primary {
			return c, true, nil
		}
	}
	return calendar.CalendarInfo{}, false, nil
}

// ResolvePrimaryCalendarID is ResolvePrimaryCalendar reduced to the id.
func ResolvePrimaryCalendarID(ctx context.Context, svc CalendarService) (string, bool, error) {
	info, ok, err := ResolvePrimaryCalendar(ctx, svc)
	return info.ID, ok, err
}
