package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPurgeOperationalCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-operational",
		Short: "Delete lock/unlock transition rows from the audit log",
		Long: `Delete operational rows (manual locks, timer expiries, motion resets,
emergency stops) from the scan audit log, keeping only rows that record
actual card presentations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, events, cleanup, err := stores(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := events.PurgeOperational(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d operational rows\n", n)
			return nil
		},
	}
}

func newDedupeCommand(opts *RootOptions) *cobra.Command {
	var windowMs int

	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Collapse duplicate scan rows recorded before reader-side suppression",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, events, cleanup, err := stores(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := events.DedupeScans(cmd.Context(), time.Duration(windowMs)*time.Millisecond)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d duplicate scans\n", n)
			return nil
		},
	}

	cmd.Flags().IntVar(&windowMs, "window-ms", 2000, "scans for the same card closer than this are duplicates")
	return cmd
}
