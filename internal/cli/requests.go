package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPendingCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List badges awaiting approval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, cleanup, err := usersOnly(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			reqs, err := users.ListPendingRequests(cmd.Context())
			if err != nil {
				return err
			}
			if len(reqs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no pending requests")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CARD\tNAME\tEMAIL\tDEPARTMENT\tREQUESTED")
			for _, r := range reqs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					r.CardID, r.Name, r.Email, r.Department, r.RequestedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func newApproveCommand(opts *RootOptions) *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "approve <card-id>",
		Short: "Promote a pending request to an active badge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, cleanup, err := usersOnly(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := users.ApproveRequest(cmd.Context(), args[0], level); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "approved %s as %s\n", args[0], level)
			return nil
		},
	}

	cmd.Flags().StringVar(&level, "level", "user", "access level to grant (user|admin)")
	return cmd
}
