package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/randgate/backend/internal/repository"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <user_id>",
		Short: "Show a user's entitlement and payment events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || userID == 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}

			_, db, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			repo := repository.NewEntitlementRepository(db)

			ent, err := repo.Find(cmd.Context(), userID)
			if err != nil {
				return err
			}
			events, err := repo.Events(cmd.Context(), userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User:    %d\n", ent.UserID)
			if !ent.Paid {
				fmt.Fprintln(out, "Paid:    no")
			} else if ent.PaidAt != nil {
				fmt.Fprintf(out, "Paid:    yes (since %s)\n", ent.PaidAt.UTC().Format(time.RFC3339))
			} else {
				fmt.Fprintln(out, "Paid:    yes")
			}

			if len(events) == 0 {
				fmt.Fprintln(out, "Events:  none")
				return nil
			}
			fmt.Fprintln(out, "Events:")
			for _, e := range events {
				fmt.Fprintf(out, "  %-20s %s %s %s %s\n",
					e.TransactionID, e.Amount, e.Currency, e.Status, e.ReceivedAt.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}
