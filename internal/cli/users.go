package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shopfloor/shearlock/internal/shear/store"
)

func newListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List enrolled badge holders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, cleanup, err := usersOnly(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			all, err := users.ListUsers(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CARD\tNAME\tLEVEL\tDEPARTMENT\tSTATUS\tLAST ACCESS")
			for _, u := range all {
				last := "never"
				if u.LastAccess != nil {
					last = u.LastAccess.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					u.CardID, u.Name, u.AccessLevel, u.Department, u.Status, last)
			}
			return tw.Flush()
		},
	}
}

func newAddCommand(opts *RootOptions) *cobra.Command {
	var name, level, department string

	cmd := &cobra.Command{
		Use:   "add <card-id>",
		Short: "Enroll a badge directly, bypassing the approval queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			users, cleanup, err := usersOnly(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			u := store.User{
				CardID:      args[0],
				Name:        name,
				AccessLevel: level,
				Department:  department,
				Status:      "active",
			}
			if err := users.AddUser(cmd.Context(), u); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enrolled %s (%s)\n", u.Name, u.CardID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "badge holder's name")
	cmd.Flags().StringVar(&level, "level", "user", "access level (user|admin)")
	cmd.Flags().StringVar(&department, "department", "", "department")
	return cmd
}

func newRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <card-id>",
		Short: "Remove a badge; its scan history is preserved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, events, cleanup, err := stores(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			cardID := args[0]
			if err := users.RemoveUser(cmd.Context(), cardID); err != nil {
				return err
			}

			n, err := events.CountForCard(cmd.Context(), cardID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s; %d audit rows retained\n", cardID, n)
			return nil
		},
	}
}
