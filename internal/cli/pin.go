package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"flakekit/internal/app"
)

func newPinCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pin <alias>",
		Short: "Pin an alias in the user registry to its current resolution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := newAppService()
			result, err := service.Pin(cmd.Context(), app.PinRequest{
				Alias:     args[0],
				Overrides: overrideFlags(cmd),
			})
			if err != nil {
				return err
			}
			fmt.Printf("pinned %s to %s\n", result.Alias, result.Target)
			return nil
		},
	}
}
