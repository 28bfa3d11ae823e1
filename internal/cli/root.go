// Package cli wires configuration, storage and the web server into the
// guestpass command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DataDir    string
	Backend    string
}

// NewRootCommand creates the root command for the guestpass CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "guestpass",
		Short: "Event guest registration and check-in",
		Long: `guestpass runs a small event check-in site: guests register and
download a QR badge, admins check them in at the door, grant a plus one and
export the guest list.`,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "directory holding the guest table (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "storage backend: csv or sqlite (overrides config)")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewHashPasswordCommand())

	return cmd
}
