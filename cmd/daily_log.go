package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/BoronSpoon/equipment-reservation/internal/eventlog"
)

func newDailyLogCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "daily-log",
		Short: "Append the reservations of three days ago to the final log",
		Long: `Copy every active reservation that started between three and two days
before --date (midnight to midnight, configured time zone) from all write
calendars into the final log sheet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				day, err := parseDay(date, a.loc, time.Now())
				if err != nil {
					return err
				}
				snap, err := a.directory.Snapshot(ctx)
				if err != nil {
					return err
				}
				n, err := a.daily.Run(ctx, day, eventlog.Writers(snap))
				if err != nil {
					return err
				}
				from, to := a.daily.Window(day)
				fmt.Fprintf(cmd.OutOrStdout(), "logged %d reservations from %s to %s\n",
					n, from.Format(time.DateTime), to.Format(time.DateTime))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Run as if on this day, YYYY-MM-DD (default: today)")

	return cmd
}

// parseDay reads a YYYY-MM-DD date in loc. An empty value means now.
func parseDay(value string, loc *time.Location, now time.Time) (time.Time, error) {
	if value == "" {
		return now.In(loc), nil
	}
	day, err := time.ParseInLocation(time.DateOnly, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, want YYYY-MM-DD: %w", value, err)
	}
	return day, nil
}
