package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"judgesandbox/config"
	"judgesandbox/logging"
)

var (
	globalConfigFile string
	globalLogLevel   string
	hostConfig       config.Host
	// cmdContext carries the configured logger for compile/run subcommands
	// to pull via logging.FromContext instead of calling logging.Default
	// directly.
	cmdContext context.Context = context.Background()
)

var rootCmd = &cobra.Command{
	Use:           "judgehost",
	Short:         "Compile and run submissions inside the judge sandbox",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()

		loaded, err := config.LoadFile(globalConfigFile)
		if err != nil {
			return err
		}
		hostConfig = loaded
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalConfigFile, "config", "/etc/judgehost.conf", "path to the judgehost INI config file")
	rootCmd.PersistentFlags().StringVar(&globalLogLevel, "log-level", "info", "minimum log level: debug, info, warn, error")
}

func setupLogging() {
	logger := logging.NewLogger(logging.Config{
		Level:  logging.ParseLevel(globalLogLevel),
		Format: "text",
		Output: os.Stderr,
	})
	logging.SetDefault(logger)
	cmdContext = logging.ContextWithLogger(context.Background(), logger)
}
