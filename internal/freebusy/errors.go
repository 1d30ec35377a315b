package freebusy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoPrimaryCalendar is returned when the calendar list is empty or no
	// entry is flagged primary.
	ErrNoPrimaryCalendar = errors.New("no primary calendar found")

	// ErrCalendarMissing is returned when the free/busy response has no entry
	// for the queried calendar.
	ErrCalendarMissing = errors.New("calendar missing from freebusy response")
)

// CalendarError carries the per-calendar reasons reported by the free/busy query.
type CalendarError struct {
	CalendarID string
	Reasons    []string
}

func (e *CalendarError) Error() string {
	return fmt.Sprintf("freebusy query failed for calendar %s: %s", e.CalendarID, strings.Join(e.Reasons, ", "))
}
