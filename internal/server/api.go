package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/teemow/freebusy/internal/availability"
	"github.com/teemow/freebusy/internal/calendar"
	"github.com/teemow/freebusy/internal/freebusy"
	"github.com/teemow/freebusy/internal/google"
	"github.com/teemow/freebusy/internal/instrumentation"
	"github.com/teemow/freebusy/internal/logging"
	"github.com/teemow/freebusy/internal/tokenstore"
)

// DefaultTimeZone is the zone availability is rendered in when the request
// does not name one.
const DefaultTimeZone = "America/Denver"

var errBadRequest = errors.New("bad request")

// API serves the free/busy and availability endpoints.
type API struct {
	querier      freebusy.BusyQuerier
	now          func() time.Time
	logger       *slog.Logger
	metrics      *instrumentation.Metrics
	timeZone     string
	workingHours availability.WorkingHours
}

// APIOption configures an API.
type APIOption func(*API)

// WithAPIClock replaces time.Now.
func WithAPIClock(now func() time.Time) APIOption {
	return func(a *API) { a.now = now }
}

// WithAPILogger sets the request logger.
func WithAPILogger(logger *slog.Logger) APIOption {
	return func(a *API) { a.logger = logger }
}

// WithAPIMetrics records HTTP requests and availability computations on m.
func WithAPIMetrics(m *instrumentation.Metrics) APIOption {
	return func(a *API) { a.metrics = m }
}

// WithDefaultTimeZone sets the zone used when a request has no tz parameter.
func WithDefaultTimeZone(name string) APIOption {
	return func(a *API) { a.timeZone = name }
}

// WithDefaultWorkingHours sets the hours used when a request omits them.
func WithDefaultWorkingHours(w availability.WorkingHours) APIOption {
	return func(a *API) { a.workingHours = w }
}

// NewAPI returns an API answering from querier.
func NewAPI(querier freebusy.BusyQuerier, opts ...APIOption) *API {
	a := &API{
		querier:      querier,
		now:          time.Now,
		logger:       slog.Default(),
		timeZone:     DefaultTimeZone,
		workingHours: availability.DefaultWorkingHours,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewRouter wires the API, the health probes and request metrics.
func NewRouter(api *API, health *HealthChecker) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(instrumentMiddleware(api.metrics))

	health.Mount(r)

	r.Get("/availability", api.Availability)
	r.Get("/freebusy/{user}", api.FreeBusy)

	return r
}

type rangeJSON struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func rangesJSON(ranges []calendar.TimeRange, loc *time.Location) []rangeJSON {
	out := make([]rangeJSON, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, rangeJSON{Start: r.Start.In(loc), End: r.End.In(loc)})
	}
	return out
}

// AvailabilityResponse is the body of GET /availability.
type AvailabilityResponse struct {
	TimeZone string      `json:"timezone"`
	Start    time.Time   `json:"start"`
	End      time.Time   `json:"end"`
	Users    []string    `json:"users"`
	Free     []rangeJSON `json:"free"`
}

// FreeBusyResponse is the body of GET /freebusy/{user}.
type FreeBusyResponse struct {
	User     string      `json:"user"`
	Calendar string      `json:"calendar"`
	Busy     []rangeJSON `json:"busy"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// availabilityQuery is a validated /availability request.
type availabilityQuery struct {
	users  []string
	loc    *time.Location
	window calendar.TimeRange
	hours  availability.WorkingHours
}

func (a *API) parseAvailabilityQuery(r *http.Request) (availabilityQuery, error) {
	q := r.URL.Query()
	var out availabilityQuery

	for _, id := range strings.Split(q.Get("id"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			out.users = append(out.users, id)
		}
	}
	if len(out.users) == 0 {
		return out, fmt.Errorf("%w: at least one id is required", errBadRequest)
	}

	tz := q.Get("tz")
	if tz == "" {
		tz = a.timeZone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return out, fmt.Errorf("%w: unknown time zone %q", errBadRequest, tz)
	}
	out.loc = loc

	window, err := freebusy.ParseWindow(q.Get("start"), q.Get("end"), a.now())
	if err != nil {
		return out, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	out.window = calendar.TimeRange{Start: window.Start.In(loc), End: window.End.In(loc)}

	out.hours = a.workingHours
	ws, we := q.Get("work_start"), q.Get("work_end")
	if ws != "" || we != "" {
		if ws == "" {
			ws = a.workingHours.Start.String()
		}
		if we == "" {
			we = a.workingHours.End.String()
		}
		if out.hours, err = availability.ParseWorkingHours(ws, we); err != nil {
			return out, fmt.Errorf("%w: %w", errBadRequest, err)
		}
	}

	return out, nil
}

// Availability answers with the time every listed user is free.
func (a *API) Availability(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := a.requestLogger(r, "availability")

	q, err := a.parseAvailabilityQuery(r)
	if err != nil {
		a.writeError(w, logger, err)
		return
	}

	free, err := freebusy.CommonAvailability(r.Context(), a.querier, freebusy.AvailabilityRequest{
		Users:        q.users,
		Window:       q.window,
		Location:     q.loc,
		WorkingHours: q.hours,
	}, logger)
	if err != nil {
		a.metrics.RecordAvailability(r.Context(), instrumentation.StatusError, time.Since(start))
		a.writeError(w, logger, err)
		return
	}
	a.metrics.RecordAvailability(r.Context(), instrumentation.StatusSuccess, time.Since(start))

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		TimeZone: q.loc.String(),
		Start:    q.window.Start,
		End:      q.window.End,
		Users:    q.users,
		Free:     rangesJSON(free, q.loc),
	})
}

// FreeBusy answers with the busy time of one user's primary calendar over
// the next seven days.
func (a *API) FreeBusy(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "user")
	logger := logging.WithUser(a.requestLogger(r, "freebusy"), user)

	busy, err := a.querier.Busy(r.Context(), user, freebusy.Window(a.now()))
	if err != nil {
		a.writeError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, FreeBusyResponse{
		User:     user,
		Calendar: busy.CalendarID,
		Busy:     rangesJSON(busy.Busy, time.UTC),
	})
}

// requestLogger tags a.logger with the operation, the request id and, when
// the request is traced, the trace id.
func (a *API) requestLogger(r *http.Request, operation string) *slog.Logger {
	logger := logging.WithOperation(a.logger, operation).With("request_id", middleware.GetReqID(r.Context()))
	if traceID := instrumentation.TraceID(r.Context()); traceID != "" {
		logger = logger.With("trace_id", traceID)
	}
	return logger
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, tokenstore.ErrInvalidUserID):
		return http.StatusBadRequest
	case errors.Is(err, google.ErrNotAuthorized), errors.Is(err, freebusy.ErrNoPrimaryCalendar):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (a *API) writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := statusFor(err)
	message := err.Error()
	if code == http.StatusBadGateway || code == http.StatusGatewayTimeout {
		logger.Error("upstream request failed", logging.Err(err))
		message = "upstream calendar request failed"
	} else {
		logger.Debug("request rejected", logging.Status(http.StatusText(code)), logging.Err(err))
	}
	writeJSON(w, code, errorResponse{Error: message})
}

// instrumentMiddleware wraps each request in a server span and records
// request counts and latency keyed by the matched route pattern rather than
// the raw path.
func instrumentMiddleware(m *instrumentation.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, span := instrumentation.StartServerSpan(r.Context(), r.Method)
			defer span.End()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			r = r.WithContext(ctx)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)
			instrumentation.SetHTTPSpanResult(span, r.Method, route, status)
			m.RecordHTTPRequest(ctx, r.Method, route, status, time.Since(start))
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
