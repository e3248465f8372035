package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flakekit/internal/app"
)

type infoOptions struct {
	JSON bool
}

func newInfoCommand() *cobra.Command {
	opts := infoOptions{}
	cmd := &cobra.Command{
		Use:   "info [flake-ref]",
		Short: "Show metadata for a single flake",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := newAppService()
			result, err := service.Info(cmd.Context(), app.InfoRequest{
				Ref:       flakeRefArg(args),
				Overrides: overrideFlags(cmd),
			})
			if err != nil {
				return err
			}
			if opts.JSON {
				return printJSON(result)
			}
			printFlakeInfo(result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Emit JSON output")
	return cmd
}

// flakeRefArg defaults the flake-ref positional to the current
// directory, like the rest of the commands that take one.
func flakeRefArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func printFlakeInfo(info app.InfoResult) {
	fmt.Printf("ID:          %s\n", info.ID)
	fmt.Printf("Description: %s\n", info.Description)
	fmt.Printf("Epoch:       %d\n", info.Epoch)
	fmt.Printf("URI:         %s\n", info.URI)
	if info.Branch != "" {
		fmt.Printf("Branch:      %s\n", info.Branch)
	}
	if info.Revision != "" {
		fmt.Printf("Revision:    %s\n", info.Revision)
	}
	if info.RevCount != nil {
		fmt.Printf("Revcount:    %d\n", *info.RevCount)
	}
	fmt.Printf("Path:        %s\n", info.StorePath)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
