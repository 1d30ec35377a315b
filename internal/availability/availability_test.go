package availability

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func local(t *testing.T, loc *time.Location, s string) time.Time {
	t.Helper()
	v, err := time.ParseInLocation("2006-01-02T15:04", s, loc)
	require.NoError(t, err)
	return v
}

// span builds ranges from start/end pairs in loc.
func span(t *testing.T, loc *time.Location, pairs ...string) []timeRange {
	t.Helper()
	require.Zero(t, len(pairs)%2)
	out := make([]timeRange, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, timeRange{Start: local(t, loc, pairs[i]), End: local(t, loc, pairs[i+1])})
	}
	return out
}

// render formats ranges in loc so failures are readable.
func render(ranges []timeRange, loc *time.Location) []string {
	out := make([]string, len(ranges))
	for i, r := range ranges {
		out[i] = r.Start.In(loc).Format("2006-01-02T15:04") + "/" + r.End.In(loc).Format("2006-01-02T15:04")
	}
	return out
}

func hours(t *testing.T, start, end string) WorkingHours {
	t.Helper()
	w, err := ParseWorkingHours(start, end)
	require.NoError(t, err)
	return w
}

func TestFree_AcrossZones(t *testing.T) {
	denver := mustLoad(t, "America/Denver")
	newYork := mustLoad(t, "America/New_York")

	cal := Calendar{
		Location: newYork,
		Busy: span(t, newYork,
			"2020-07-01T08:30", "2020-07-01T08:55",
			"2020-07-01T10:00", "2020-07-01T12:30",
			"2020-07-03T09:00", "2020-07-03T09:30",
		),
		WorkingHours: hours(t, "09:00", "17:00"),
	}
	window := timeRange{Start: local(t, denver, "2020-07-01T10:00"), End: local(t, denver, "2020-07-03T12:00")}

	got := cal.Free(window)

	want := span(t, denver,
		"2020-07-01T10:30", "2020-07-01T15:00",
		"2020-07-02T07:00", "2020-07-02T15:00",
		"2020-07-03T07:30", "2020-07-03T12:00",
	)
	assert.Equal(t, render(want, denver), render(got, denver))
	for _, r := range got {
		assert.Equal(t, denver, r.Start.Location(), "results are expressed in the window's zone")
	}
}

func TestCommon_SameSchedule(t *testing.T) {
	denver := mustLoad(t, "America/Denver")
	busy := span(t, denver,
		"2020-07-01T10:00", "2020-07-01T11:00",
		"2020-07-01T12:00", "2020-07-01T13:00",
	)
	allDay := hours(t, "00:00:00", "23:59:59")
	cal := Calendar{Location: denver, Busy: busy, WorkingHours: allDay}
	window := timeRange{Start: local(t, denver, "2020-07-01T00:00"), End: local(t, denver, "2020-07-02T00:00")}

	assert.Equal(t, render(cal.Free(window), denver), render(Common([]Calendar{cal, cal}, window), denver))
}

func TestCommon_DifferentSchedules(t *testing.T) {
	denver := mustLoad(t, "America/Denver")
	work := hours(t, "09:00", "17:00")

	cal1 := Calendar{Location: denver, WorkingHours: work, Busy: span(t, denver,
		"2020-07-01T08:30", "2020-07-01T08:55",
		"2020-07-01T10:00", "2020-07-01T12:00",
	)}
	cal2 := Calendar{Location: denver, WorkingHours: work, Busy: span(t, denver,
		"2020-07-01T09:00", "2020-07-01T09:55",
		"2020-07-01T11:00", "2020-07-01T14:00",
	)}
	window := timeRange{Start: local(t, denver, "2020-07-01T00:00"), End: local(t, denver, "2020-07-02T00:00")}

	want := span(t, denver,
		"2020-07-01T09:55", "2020-07-01T10:00",
		"2020-07-01T14:00", "2020-07-01T17:00",
	)
	assert.Equal(t, render(want, denver), render(Common([]Calendar{cal1, cal2}, window), denver))
	assert.Equal(t, render(want, denver), render(Common([]Calendar{cal2, cal1}, window), denver))
}

func zonedPair(t *testing.T) (Calendar, Calendar, *time.Location) {
	denver := mustLoad(t, "America/Denver")
	newYork := mustLoad(t, "America/New_York")

	cal1 := Calendar{Location: denver, WorkingHours: hours(t, "08:00", "18:00"), Busy: span(t, denver,
		"2020-07-01T08:30", "2020-07-01T08:55",
		"2020-07-01T10:00", "2020-07-01T12:00",
	)}
	cal2 := Calendar{Location: newYork, WorkingHours: hours(t, "09:00", "17:00"), Busy: span(t, newYork,
		"2020-07-01T09:00", "2020-07-01T09:55",
		"2020-07-01T11:00", "2020-07-01T14:00",
	)}
	return cal1, cal2, denver
}

func TestCommon_DifferentZones(t *testing.T) {
	cal1, cal2, denver := zonedPair(t)
	window := timeRange{Start: local(t, denver, "2020-07-01T00:00"), End: local(t, denver, "2020-07-02T00:00")}

	want := span(t, denver,
		"2020-07-01T08:00", "2020-07-01T08:30",
		"2020-07-01T08:55", "2020-07-01T09:00",
		"2020-07-01T12:00", "2020-07-01T15:00",
	)
	assert.Equal(t, render(want, denver), render(Common([]Calendar{cal1, cal2}, window), denver))
}

func TestCommon_AfternoonOnly(t *testing.T) {
	cal1, cal2, denver := zonedPair(t)
	window := timeRange{Start: local(t, denver, "2020-07-01T13:00"), End: local(t, denver, "2020-07-01T17:00")}

	want := span(t, denver, "2020-07-01T13:00", "2020-07-01T15:00")
	assert.Equal(t, render(want, denver), render(Common([]Calendar{cal1, cal2}, window), denver))
}

func TestCommon_Empty(t *testing.T) {
	window := timeRange{Start: time.Now(), End: time.Now().Add(time.Hour)}
	assert.Empty(t, Common(nil, window))
}

func TestFree_EmptyWindow(t *testing.T) {
	now := time.Now()
	cal := Calendar{WorkingHours: DefaultWorkingHours}

	assert.Empty(t, cal.Free(timeRange{Start: now, End: now}))
	assert.Empty(t, cal.Free(timeRange{Start: now, End: now.Add(-time.Hour)}))
}

func TestFree_DaylightSavingTransition(t *testing.T) {
	denver := mustLoad(t, "America/Denver")
	cal := Calendar{Location: denver, WorkingHours: hours(t, "09:00", "17:00")}

	// 2020-03-08 is the spring-forward Sunday in the US.
	window := timeRange{Start: local(t, denver, "2020-03-07T00:00"), End: local(t, denver, "2020-03-09T00:00")}
	got := cal.Free(window)

	require.Len(t, got, 2)
	assert.Equal(t, render(span(t, denver,
		"2020-03-07T09:00", "2020-03-07T17:00",
		"2020-03-08T09:00", "2020-03-08T17:00",
	), denver), render(got, denver))
	for _, r := range got {
		assert.Equal(t, 8*time.Hour, r.End.Sub(r.Start))
	}
}

func TestFree_NilLocationIsUTC(t *testing.T) {
	cal := Calendar{WorkingHours: DefaultWorkingHours}
	window := timeRange{
		Start: time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2020, 7, 2, 0, 0, 0, 0, time.UTC),
	}

	assert.Equal(t, []timeRange{{
		Start: time.Date(2020, 7, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2020, 7, 1, 17, 0, 0, 0, time.UTC),
	}}, cal.Free(window))
}
