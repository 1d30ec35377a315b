package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/freebusy/internal/calendar"
	"github.com/teemow/freebusy/internal/freebusy"
)

const rangeLayout = "Mon 2006-01-02 15:04 MST"

func newBusyCmd() *cobra.Command {
	var (
		user       string
		start, end string
		tz         string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "busy",
		Short: "Print the busy time of a user's primary calendar",
		Long: `Resolve the user's primary calendar and print its busy intervals.

The window defaults to the next seven days.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			window, err := freebusy.ParseWindow(start, end, time.Now())
			if err != nil {
				return err
			}
			loc, err := loadLocation(tz)
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

			result, err := a.service(nil).Busy(ctx, user, window)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeRangesJSON(out, result.Busy, loc)
			}
			fmt.Fprintf(out, "Busy time for %s (%s):\n", user, result.CalendarID)
			writeRanges(out, result.Busy, loc, "No busy time")
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", defaultUser, "User id to query")
	cmd.Flags().StringVar(&start, "start", "", "Window start (RFC 3339). Defaults to now")
	cmd.Flags().StringVar(&end, "end", "", "Window end (RFC 3339). Defaults to start plus seven days")
	cmd.Flags().StringVar(&tz, "tz", "Local", "Time zone used to print times")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")

	return cmd
}

func loadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", name, err)
	}
	return loc, nil
}

func writeRanges(w io.Writer, ranges []calendar.TimeRange, loc *time.Location, empty string) {
	if len(ranges) == 0 {
		fmt.Fprintf(w, "  %s\n", empty)
		return
	}
	for _, r := range ranges {
		fmt.Fprintf(w, "  %s - %s\n", r.Start.In(loc).Format(rangeLayout), r.End.In(loc).Format(rangeLayout))
	}
}

type rangeOutput struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func writeRangesJSON(w io.Writer, ranges []calendar.TimeRange, loc *time.Location) error {
	out := make([]rangeOutput, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, rangeOutput{Start: r.Start.In(loc), End: r.End.In(loc)})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
