// Package cli implements the shearcards admin tool: badge directory
// management and audit-log maintenance against the controller's SQLite
// database, run from the shop-floor workstation while the daemon is
// stopped or on a copy of the database.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/shopfloor/shearlock/internal/db"
	"github.com/shopfloor/shearlock/internal/shear/store/sqlite"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DBPath string
}

// NewRootCommand creates the root command for the shearcards CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "shearcards",
		Short: "Manage shear access badges and the scan audit log",
	}

	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "./data/shearlock.db", "path to the controller database")

	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newPendingCommand(opts))
	cmd.AddCommand(newAddCommand(opts))
	cmd.AddCommand(newRemoveCommand(opts))
	cmd.AddCommand(newApproveCommand(opts))
	cmd.AddCommand(newPurgeOperationalCommand(opts))
	cmd.AddCommand(newDedupeCommand(opts))

	return cmd
}

// stores opens the database and builds the two stores.  The returned
// cleanup closes the write worker before the connection.
func stores(ctx context.Context, opts *RootOptions) (*sqlite.UserStore, *sqlite.ScanEventStore, func(), error) {
	conn, err := db.Open(ctx, db.Config{Path: opts.DBPath})
	if err != nil {
		return nil, nil, nil, err
	}
	writer := db.NewWorker(conn)
	cleanup := func() {
		writer.Close()
		conn.Close()
	}
	return sqlite.NewUserStore(conn, writer), sqlite.NewScanEventStore(conn, writer), cleanup, nil
}

// usersOnly is stores for commands that never touch the audit log.
func usersOnly(ctx context.Context, opts *RootOptions) (*sqlite.UserStore, func(), error) {
	users, _, cleanup, err := stores(ctx, opts)
	return users, cleanup, err
}
