package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/CPowerMav/PieSS/internal/config"
	"github.com/CPowerMav/PieSS/internal/logging"
)

var (
	configPath string
	logOutput  io.Writer = os.Stdout
)

var rootCmd = &cobra.Command{
	Use:   "piess",
	Short: "ISS overhead pass alerts on a Raspberry Pi",
	Long: "piess predicts visible ISS passes for the observer's location and counts them down\n" +
		"on stage LEDs, a direction compass and a servo flag.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("PIESS_CONFIG"), "path to YAML config file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(passesCmd)
	rootCmd.AddCommand(hwtestCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file, applies environment overrides and
// returns the validated config with a logger built from it.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}
	// Override warnings are logged with the built-in log settings.
	cfg.ApplyEnv(logging.NewWithWriter(config.Default().Log, logOutput))

	logger := logging.NewWithWriter(cfg.Log, logOutput)
	if err := cfg.Validate(); err != nil {
		return cfg, logger, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logger, nil
}
