package availability

import "time"

// Calendar is one person's busy time together with the working hours and
// zone in which those hours apply.
type Calendar struct {
	Location     *time.Location
	Busy         []timeRange
	WorkingHours WorkingHours
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// workingRanges returns one working range per local date touched by window,
// from the start date to the end date inclusive.
func (c Calendar) workingRanges(window timeRange) []timeRange {
	loc := c.location()
	first := window.Start.In(loc)
	last := window.End.In(loc)

	// Iterate civil dates in UTC so the step is always exactly one day.
	day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)

	var out []timeRange
	for ; !day.After(end); day = day.AddDate(0, 0, 1) {
		out = append(out, c.WorkingHours.On(day.Year(), day.Month(), day.Day(), loc))
	}
	return out
}

// Free returns the free time within window that also falls inside working
// hours. Ranges are normalized and expressed in window.Start's location.
func (c Calendar) Free(window timeRange) []timeRange {
	if !window.End.After(window.Start) {
		return nil
	}

	free := Subtract(window, Normalize(c.Busy))
	return inLocation(Intersect(free, Normalize(c.workingRanges(window))), window.Start.Location())
}

// Common returns the time in window during which every calendar is free.
// No calendars means no common time.
func Common(cals []Calendar, window timeRange) []timeRange {
	if len(cals) == 0 {
		return nil
	}

	common := cals[0].Free(window)
	for _, c := range cals[1:] {
		if len(common) == 0 {
			break
		}
		common = Intersect(common, c.Free(window))
	}
	return inLocation(common, window.Start.Location())
}

func inLocation(ranges []timeRange, loc *time.Location) []timeRange {
	for i := range ranges {
		ranges[i] = timeRange{Start: ranges[i].Start.In(loc), End: ranges[i].End.In(loc)}
	}
	return ranges
}
