package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bdot-detumbler/internal/app"
	"bdot-detumbler/internal/config"
	"bdot-detumbler/internal/logging"
	"bdot-detumbler/internal/version"
)

// skipConfig marks commands that run without loading configuration.
const skipConfig = "skip-config"

var (
	cfgFile   string
	logLevel  string
	appHandle *app.App
)

var rootCmd = &cobra.Command{
	Use:           "detumbler",
	Short:         "Magnetorquer B-dot detumble controller",
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil || cmd.Annotations[skipConfig] == "true" {
			return nil
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger := logging.NewLogger(cfg.Logging).With().
			Str("app", cfg.App.Name).
			Str("env", cfg.App.Environment).
			Logger()
		appHandle = app.NewApp(cfg, logger)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")

	rootCmd.AddCommand(runCmd, simulateCmd, replayCmd, showCmd, exportCmd, versionCmd)
}

func getApp() (*app.App, error) {
	if appHandle == nil {
		return nil, errors.New("application not initialized")
	}
	return appHandle, nil
}
