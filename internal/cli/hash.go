package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/guestpass/internal/auth"
)

// NewHashPasswordCommand creates the hash-password command.
func NewHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for admin_password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
