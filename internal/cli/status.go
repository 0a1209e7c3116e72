package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync state and pending queue length",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			status := struct {
				Configured bool        `json:"configured"`
				SignedIn   bool        `json:"signed_in"`
				Engine     interface{} `json:"engine"`
			}{
				Configured: a.handle.IsConfigured(),
				SignedIn:   a.handle.OwnerID() != "",
				Engine:     a.engine.Status(),
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		},
	}
}
