// Package availability turns busy intervals into free time inside daily
// working hours and intersects free time across calendars.
//
// All ranges are half-open [Start, End). Working hours are applied per local
// date in each calendar's own location, so people in different zones are
// compared on the same instants.
package availability
