// Package calendar provides a client for the parts of the Google Calendar API
// that freebusy needs: the calendar list and the free/busy query.
//
// Every call is traced and recorded as a Google API operation.
//
// Example usage:
//
//	client, err := calendar.NewClient(ctx, tokenSource)
//	if err != nil {
//	    return err
//	}
//
//	calendars, err := client.ListCalendars(ctx)
package calendar
