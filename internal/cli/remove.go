package cli

import (
	"github.com/spf13/cobra"

	"flakekit/internal/app"
)

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <alias>",
		Short: "Remove an alias from the user registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := newAppService()
			return service.Remove(cmd.Context(), app.RemoveRequest{
				Alias: args[0],
			})
		},
	}
}
