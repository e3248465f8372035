package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"flakekit/internal/app"
)

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registry entries across all tiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			service := newAppService()
			result, err := service.List(cmd.Context(), app.ListRequest{
				Overrides: overrideFlags(cmd),
			})
			if err != nil {
				return err
			}
			for _, entry := range result.Entries {
				fmt.Printf("%s %s %s\n", entry.From, entry.Tier, entry.To)
			}
			return nil
		},
	}
	return cmd
}
