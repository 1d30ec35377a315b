// Package freebusy answers "when is this user busy" for a user's primary
// Google calendar.
//
// Service.GetFreeBusy acquires the user's credential, lists their calendars,
// picks the first one flagged primary and queries its busy intervals for
// [now, now+7d). A missing primary calendar is an error
// (ErrNoPrimaryCalendar), never an empty result.
package freebusy
