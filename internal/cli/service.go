package cli

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"flakekit/internal/app"
)

// newAppService wires the service from viper config, with per-user
// defaults for anything unset. Variable so tests can substitute fakes.
var newAppService = func() app.Service {
	return app.NewService(app.Config{
		StoreDir: defaultPath(viper.GetString("store_dir"), os.UserCacheDir,
			"flakekit", "store"),
		UserRegistryPath: defaultPath(viper.GetString("user_registry"), os.UserConfigDir,
			"flakekit", "registry.yaml"),
		GlobalRegistryPath: defaultPath(viper.GetString("global_registry"), os.UserConfigDir,
			"flakekit", "global-registry.yaml"),
		Workers: viper.GetInt("workers"),
	})
}

// overrideFlags reads the repeated --override-flake values from the
// command's persistent flags.
func overrideFlags(cmd *cobra.Command) []string {
	values, err := cmd.Flags().GetStringArray("override-flake")
	if err != nil {
		return nil
	}
	return values
}

