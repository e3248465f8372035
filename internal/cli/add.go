package cli

import (
	"github.com/spf13/cobra"

	"flakekit/internal/app"
)

func newAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add <alias> <flake-ref>",
		Short: "Add or replace an alias in the user registry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := newAppService()
			return service.Add(cmd.Context(), app.AddRequest{
				Alias:  args[0],
				Target: args[1],
			})
		},
	}
}
