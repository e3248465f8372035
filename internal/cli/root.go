package cli

import (
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"flakekit/internal/core"
)

// version is set at build time via ldflags.
var version = "dev"

const envPrefix = "FLAKEKIT"

type RootConfig struct {
	ConfigFile string
	LogLevel   string
}

func Execute() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(exitCodeForError(err))
	}
}

func newRootCommand() *cobra.Command {
	cfg := RootConfig{}
	cmd := &cobra.Command{
		Use:     "flakekit",
		Short:   "Resolve flake references, registries, and locks",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(cfg.ConfigFile); err != nil {
				return err
			}
			setupLogging(viper.GetString("log_level"))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "", "Config file path")
	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", "info", "Log level")
	cmd.PersistentFlags().String("user-registry", "", "User registry file")
	cmd.PersistentFlags().String("global-registry", "", "Global registry file")
	cmd.PersistentFlags().String("store-dir", "", "Source store directory")
	cmd.PersistentFlags().StringArray("override-flake", nil, "Override an alias for this invocation (alias=flake-ref)")
	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("user_registry", cmd.PersistentFlags().Lookup("user-registry"))
	_ = viper.BindPFlag("global_registry", cmd.PersistentFlags().Lookup("global-registry"))
	_ = viper.BindPFlag("store_dir", cmd.PersistentFlags().Lookup("store-dir"))

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newInfoCommand())
	cmd.AddCommand(newDepsCommand())
	cmd.AddCommand(newUpdateCommand())
	cmd.AddCommand(newPinCommand())
	cmd.AddCommand(newAddCommand())
	cmd.AddCommand(newRemoveCommand())
	return cmd
}

func initConfig(configFile string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("failed to read config file").
				WithCause(err)
		}
		return nil
	}

	viper.SetConfigName("flakekit")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/flakekit")
	if err := viper.ReadInConfig(); err != nil {
		return nil
	}
	return nil
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func exitCodeForError(err error) int {
	switch {
	case core.IsParseError(err):
		return 2
	case core.IsCyclicAlias(err), core.IsCyclicFlake(err):
		return 3
	case core.IsNotUpdatable(err):
		return 4
	case core.IsAliasNotFound(err):
		return 5
	}
	switch errbuilder.CodeOf(err) {
	case errbuilder.CodeInvalidArgument:
		return 2
	case errbuilder.CodeFailedPrecondition:
		return 3
	case errbuilder.CodeNotFound:
		return 5
	default:
		return 1
	}
}

// defaultPath expands a per-user default when the config leaves a
// location unset.
func defaultPath(configured string, base func() (string, error), parts ...string) string {
	if configured != "" {
		return configured
	}
	root, err := base()
	if err != nil {
		root = "."
	}
	return filepath.Join(append([]string{root}, parts...)...)
}
