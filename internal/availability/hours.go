package availability

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWorkingHours is returned for unparsable clocks or a start that is
// not before the end.
var ErrInvalidWorkingHours = errors.New("invalid working hours")

// Clock is a wall-clock time of day.
type Clock struct {
	Hour, Minute, Second int
}

func (c Clock) String() string {
	if c.Second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
	}
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) seconds() int {
	return c.Hour*3600 + c.Minute*60 + c.Second
}

// WorkingHours is the daily window [Start, End) in a calendar's local time.
type WorkingHours struct {
	Start Clock
	End   Clock
}

// DefaultWorkingHours is 09:00 to 17:00.
var DefaultWorkingHours = WorkingHours{Start: Clock{Hour: 9}, End: Clock{Hour: 17}}

func (w WorkingHours) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// On returns the working range on the given local date. The clocks are
// applied in loc, so the range follows daylight saving changes.
func (w WorkingHours) On(year int, month time.Month, day int, loc *time.Location) timeRange {
	return timeRange{
		Start: time.Date(year, month, day, w.Start.Hour, w.Start.Minute, w.Start.Second, 0, loc),
		End:   time.Date(year, month, day, w.End.Hour, w.End.Minute, w.End.Second, 0, loc),
	}
}

// ParseClock accepts "15:04" or "15:04:05".
func ParseClock(s string) (Clock, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return Clock{}, fmt.Errorf("%w: cannot parse clock %q", ErrInvalidWorkingHours, s)
}

// ParseWorkingHours parses both clocks and requires start < end.
func ParseWorkingHours(start, end string) (WorkingHours, error) {
	s, err := ParseClock(start)
	if err != nil {
		return WorkingHours{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return WorkingHours{}, err
	}
	if s.seconds() >= e.seconds() {
		return WorkingHours{}, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidWorkingHours, s, e)
	}
	return WorkingHours{Start: s, End: e}, nil
}
