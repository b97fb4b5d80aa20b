package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newApplyConditionCmd() *cobra.Command {
	var (
		sheet     string
		row       int
		syncAfter bool
	)

	cmd := &cobra.Command{
		Use:   "apply-condition",
		Short: "Create or update a reservation from an equipment sheet row",
		Long: `Read one row of an equipment sheet (start, end, user, state, experiment
conditions and an optional event id) and create or update the matching
reservation on the user's write calendar.

With --sync, the user's write calendar is synced afterwards so the
reservation is mirrored and logged right away.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sheet == "" {
				return fmt.Errorf("--sheet is required")
			}
			if row < 2 {
				return fmt.Errorf("--row must be a data row (2 or greater)")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				cond, err := a.engine.LoadConditionRow(ctx, sheet, row)
				if err != nil {
					return err
				}
				ev, err := a.engine.ApplyConditionRow(ctx, cond)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reservation %s: %s\n", ev.ID, ev.Summary)

				if !syncAfter {
					return nil
				}
				snap, err := a.directory.Snapshot(ctx)
				if err != nil {
					return err
				}
				user, err := snap.ByName(cond.User)
				if err != nil {
					return err
				}
				res, err := a.engine.RunSync(ctx, user.WriteCalendarID, false)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "Equipment sheet title")
	cmd.Flags().IntVar(&row, "row", 0, "Row number as shown in the spreadsheet")
	cmd.Flags().BoolVar(&syncAfter, "sync", false, "Sync the user's write calendar afterwards")

	return cmd
}
