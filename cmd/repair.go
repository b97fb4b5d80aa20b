package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newRepairCmd() *cobra.Command {
	var (
		readCalendarID string
		index          int
	)

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Reconcile one subscriber's guest memberships",
		Long: `Add or remove one subscriber's read calendar as a guest on every active
reservation of every write calendar, according to the equipment the
subscriber has enabled. Titles, logs and sync cursors are left untouched.

Run this after changing a subscriber's equipment checkboxes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (readCalendarID == "") == (index < 0) {
				return fmt.Errorf("exactly one of --read-calendar or --index is required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				res, err := a.engine.OnSubscriptionChange(ctx, readCalendarID, index)
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&readCalendarID, "read-calendar", "", "Read calendar id of the subscriber")
	cmd.Flags().IntVar(&index, "index", -1, "0-based data row of the subscriber in the users sheet")

	return cmd
}
