package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"flakekit/internal/app"
)

func newUpdateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update [flake-ref]",
		Short: "Re-resolve a local flake's inputs and rewrite its lock file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := newAppService()
			result, err := service.Update(cmd.Context(), app.UpdateRequest{
				Ref:       flakeRefArg(args),
				Overrides: overrideFlags(cmd),
			})
			if err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d inputs pinned)\n", result.LockPath, result.Pinned)
			return nil
		},
	}
}
