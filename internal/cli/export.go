package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/guestpass/internal/checkin"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Out string
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the guest list as CSV",
		Long: `Back up the guest table and write it as CSV to stdout or a file.

Example:
  guestpass export --out guest_list.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "output file (default stdout)")

	return cmd
}

func runExport(cmd *cobra.Command, opts *ExportOptions) error {
	svc, store, err := openService(opts.RootOptions)
	if err != nil {
		return err
	}
	defer store.Close()

	var w io.Writer = cmd.OutOrStdout()
	if opts.Out != "" {
		f, err := os.Create(opts.Out)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	n, err := svc.Export(cmd.Context(), w)
	if errors.Is(err, checkin.ErrNoGuests) {
		fmt.Fprintln(cmd.ErrOrStderr(), "No guests registered yet.")
		return nil
	}
	if err != nil {
		return err
	}
	if opts.Out != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d guests to %s\n", n, opts.Out)
	}
	return nil
}
