package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print dashboard counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, store, err := openService(rootOpts)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := svc.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total:          %d\n", stats.Total)
			fmt.Fprintf(out, "Checked in:     %d\n", stats.CheckedIn)
			fmt.Fprintf(out, "Not checked in: %d\n", stats.NotCheckedIn)
			fmt.Fprintf(out, "Plus ones:      %d\n", stats.PlusOnes)
			return nil
		},
	}
}
