package calendar

import (
	"fmt"
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// CalendarInfo represents an entry of the user's calendar list
type CalendarInfo struct {
	ID          string
	Summary     string
	Description string
	TimeZone    string
	Primary     bool
	AccessRole  string // "owner", "writer", "reader", "freeBusyReader"
}

// FreeBusyRequest describes a free/busy query over [TimeMin, TimeMax)
type FreeBusyRequest struct {
	TimeMin time.Time
	TimeMax time.Time
	// TimeZone is the zone used in the response; empty means UTC
	TimeZone string
	Items    []string
}

// FreeBusyInfo represents busy intervals for one calendar
type FreeBusyInfo struct {
	Calendar string
	Busy     []TimeRange
	Errors   []string
}

// TimeRange is the half-open interval [Start, End)
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func toCalendarInfo(entry *calendar.CalendarListEntry) CalendarInfo {
	if entry == nil {
		return CalendarInfo{}
	}
	return CalendarInfo{
		ID:          entry.Id,
		Summary:     entry.Summary,
		Description: entry.Description,
		TimeZone:    entry.TimeZone,
		Primary:     entry.Primary,
		AccessRole:  entry.AccessRole,
	}
}

func toFreeBusyInfo(id string, cal calendar.FreeBusyCalendar) (FreeBusyInfo, error) {
	info := FreeBusyInfo{Calendar: id}

	for _, busy := range cal.Busy {
		if busy == nil {
			continue
		}
		start, err := time.Parse(time.RFC3339, busy.Start)
		if err != nil {
			return FreeBusyInfo{}, fmt.Errorf("invalid busy start %q for %s: %w", busy.Start, id, err)
		}
		end, err := time.Parse(time.RFC3339, busy.End)
		if err != nil {
			return FreeBusyInfo{}, fmt.Errorf("invalid busy end %q for %s: %w", busy.End, id, err)
		}
		info.Busy = append(info.Busy, TimeRange{Start: start, End: end})
	}

	for _, e := range cal.Errors {
		if e != nil {
			info.Errors = append(info.Errors, e.Reason)
		}
	}

	return info, nil
}
