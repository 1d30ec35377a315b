package google

import "google.golang.org/api/calendar/v3"

// DefaultOAuthScopes are requested for every user. Changing them invalidates
// previously stored tokens; delete the token store after editing this list.
var DefaultOAuthScopes = []string{
	calendar.CalendarReadonlyScope,
}
