package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"imrich/internal/platform/config"
	"imrich/internal/platform/logger"
)

const programName = "imrich"

var globalFlags = struct {
	debug bool
}{}

// commonRun loads configuration and installs the process logger.
func commonRun() (config.Server, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Server{}, nil, err
	}
	level := cfg.LogLevel
	if globalFlags.debug {
		level = "debug"
	}
	log := logger.NewWithWriter(os.Stdout, level, cfg.LogFormat, globalFlags.debug)
	slog.SetDefault(log)
	return cfg, log, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Certificate issuance and verification for AI-generated images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(migrateCommand())
	rootCmd.AddCommand(tokenCommand())

	if err := rootCmd.Execute(); err != nil {
		slog.Error(err.Error(), "component", programName)
		os.Exit(1)
	}
}
