package freebusy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teemow/freebusy/internal/availability"
	"github.com/teemow/freebusy/internal/calendar"
	"github.com/teemow/freebusy/internal/instrumentation"
	"github.com/teemow/freebusy/internal/logging"
)

// ErrInvalidWindow is returned by ParseWindow for unparsable or empty windows.
var ErrInvalidWindow = errors.New("invalid time window")

// ParseWindow parses optional RFC 3339 bounds. A missing start is now and a
// missing end is start plus QueryWindow.
func ParseWindow(start, end string, now time.Time) (calendar.TimeRange, error) {
	window := Window(now)
	var err error
	if start != "" {
		if window.Start, err = time.Parse(time.RFC3339, start); err != nil {
			return calendar.TimeRange{}, fmt.Errorf("%w: start must be RFC 3339", ErrInvalidWindow)
		}
		window.End = window.Start.Add(QueryWindow)
	}
	if end != "" {
		if window.End, err = time.Parse(time.RFC3339, end); err != nil {
			return calendar.TimeRange{}, fmt.Errorf("%w: end must be RFC 3339", ErrInvalidWindow)
		}
	}
	if !window.End.After(window.Start) {
		return calendar.TimeRange{}, fmt.Errorf("%w: end must be after start", ErrInvalidWindow)
	}
	return window, nil
}

// BusyQuerier returns a user's busy time within a window. *Service
// implements it.
type BusyQuerier interface {
	Busy(ctx context.Context, userID string, window calendar.TimeRange) (*CalendarBusy, error)
}

// AvailabilityRequest asks for the time every user is free.
type AvailabilityRequest struct {
	Users  []string
	Window calendar.TimeRange
	// Location is the zone results are rendered in and the fallback for
	// calendars without a usable zone of their own.
	Location     *time.Location
	WorkingHours availability.WorkingHours
}

// CommonAvailability queries each user in order and returns the ranges in
// which all of them are free within working hours. The first failing user
// aborts the computation.
func CommonAvailability(ctx context.Context, q BusyQuerier, req AvailabilityRequest, logger *slog.Logger) (free []calendar.TimeRange, err error) {
	ctx, span := instrumentation.StartSpan(ctx, "freebusy.common_availability",
		instrumentation.NewSpanAttributeBuilder().WithUsers(len(req.Users)).Build()...)
	defer func() { instrumentation.EndSpan(span, err) }()

	if logger == nil {
		logger = slog.Default()
	}
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}
	window := calendar.TimeRange{Start: req.Window.Start.In(loc), End: req.Window.End.In(loc)}

	cals := make([]availability.Calendar, 0, len(req.Users))
	for _, user := range req.Users {
		busy, err := q.Busy(ctx, user, window)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", logging.AnonymizeUser(user), err)
		}
		cals = append(cals, availability.Calendar{
			Location:     calendarLocation(logging.WithUser(logger, user), busy.TimeZone, loc),
			Busy:         busy.Busy,
			WorkingHours: req.WorkingHours,
		})
	}
	return availability.Common(cals, window), nil
}

// calendarLocation resolves a calendar's zone, falling back when the
// calendar has none or an unknown one.
func calendarLocation(logger *slog.Logger, name string, fallback *time.Location) *time.Location {
	if name == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.Warn("unknown calendar time zone", "timezone", name, logging.Err(err))
		return fallback
	}
	return loc
}
