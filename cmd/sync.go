package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/BoronSpoon/equipment-reservation/internal/syncengine"
)

func newSyncCmd() *cobra.Command {
	var (
		calendarID string
		full       bool
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror a write calendar onto subscribers' read calendars",
		Long: `Pull the changes of a write calendar since its stored sync cursor, retitle
and re-guest every active reservation, log every reservation and
cancellation, and store a fresh cursor.

Without a stored cursor, or with --full, the pass covers every event that
starts within the configured lookback window.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (calendarID == "") == !all {
				return fmt.Errorf("exactly one of --calendar or --all is required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				ids := []string{calendarID}
				if all {
					snap, err := a.directory.Snapshot(ctx)
					if err != nil {
						return err
					}
					ids = snap.WriteCalendars()
				}
				for _, id := range ids {
					res, err := a.engine.RunSync(ctx, id, full)
					if err != nil {
						return fmt.Errorf("sync of %s failed: %w", id, err)
					}
					printResult(cmd.OutOrStdout(), res)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&calendarID, "calendar", "", "Write calendar id to sync")
	cmd.Flags().BoolVar(&all, "all", false, "Sync every write calendar in the directory")
	cmd.Flags().BoolVar(&full, "full", false, "Ignore the stored cursor and rescan the lookback window")

	return cmd
}

func printResult(w io.Writer, res *syncengine.Result) {
	fmt.Fprintf(w, "%s %s: %d events (%d active, %d cancelled), %d updated, %d logged, %d skipped",
		res.Mode, res.CalendarID, res.Events, res.Active, res.Cancelled, res.Updated, res.Logged, res.Skipped)
	if res.Recovered {
		fmt.Fprint(w, ", cursor was invalid")
	}
	fmt.Fprintf(w, " [%s]\n", res.PassID)
}
