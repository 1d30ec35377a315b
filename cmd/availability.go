package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/freebusy/internal/availability"
	"github.com/teemow/freebusy/internal/freebusy"
	"github.com/teemow/freebusy/internal/server"
)

func newAvailabilityCmd() *cobra.Command {
	var (
		ids                []string
		start, end         string
		tz                 string
		workStart, workEnd string
		asJSON             bool
	)

	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Print the time all given users are free within working hours",
		Long: `Query the primary calendar of every user and print the ranges in which all
of them are free. Working hours apply in each calendar's own time zone.

Every user must already be authorized; users without a stored token go
through the consent flow one after the other.`,
		Example: `  freebusy availability --id alice,bob
  freebusy availability --id alice --id bob --tz Europe/Berlin --work-start 08:30 --work-end 16:00`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users := splitIDs(ids)
			if len(users) == 0 {
				return fmt.Errorf("at least one --id is required")
			}
			window, err := freebusy.ParseWindow(start, end, time.Now())
			if err != nil {
				return err
			}
			loc, err := loadLocation(tz)
			if err != nil {
				return err
			}
			hours, err := availability.ParseWorkingHours(workStart, workEnd)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			a, err := newApp(cmd, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			free, err := freebusy.CommonAvailability(ctx, a.service(nil), freebusy.AvailabilityRequest{
				Users:        users,
				Window:       window,
				Location:     loc,
				WorkingHours: hours,
			}, a.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeRangesJSON(out, free, loc)
			}
			fmt.Fprintf(out, "Common free time for %s (%s, %s):\n", strings.Join(users, ", "), loc, hours)
			writeRanges(out, free, loc, "No common free time")
			return nil
		},
	}

	def := availability.DefaultWorkingHours
	cmd.Flags().StringSliceVar(&ids, "id", nil, "User ids to compare (repeat or comma-separate)")
	cmd.Flags().StringVar(&start, "start", "", "Window start (RFC 3339). Defaults to now")
	cmd.Flags().StringVar(&end, "end", "", "Window end (RFC 3339). Defaults to start plus seven days")
	cmd.Flags().StringVar(&tz, "tz", server.DefaultTimeZone, "Time zone results are printed in and fallback for calendars without one")
	cmd.Flags().StringVar(&workStart, "work-start", def.Start.String(), "Start of working hours (HH:MM or HH:MM:SS)")
	cmd.Flags().StringVar(&workEnd, "work-end", def.End.String(), "End of working hours (HH:MM or HH:MM:SS)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")

	return cmd
}

// splitIDs trims ids and drops empty ones, keeping order.
func splitIDs(ids []string) []string {
	var out []string
	for _, id := range ids {
		for _, part := range strings.Split(id, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
