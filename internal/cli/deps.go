package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"flakekit/internal/app"
)

type depsOptions struct {
	JSON bool
}

func newDepsCommand() *cobra.Command {
	opts := depsOptions{}
	cmd := &cobra.Command{
		Use:   "deps [flake-ref]",
		Short: "Show the resolved dependency closure of a flake",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := newAppService()
			result, err := service.Deps(cmd.Context(), app.DepsRequest{
				Ref:       flakeRefArg(args),
				Overrides: overrideFlags(cmd),
			})
			if err != nil {
				return err
			}
			if opts.JSON {
				return printJSON(result)
			}
			for _, dep := range result.NonFlakes {
				fmt.Printf("non-flake dependency %s: %s\n", dep.Name, dep.StorePath)
			}
			for _, flake := range result.Flakes {
				fmt.Printf("dependency flake %s: %s\n", flake.ID, flake.StorePath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Emit JSON output")
	return cmd
}
