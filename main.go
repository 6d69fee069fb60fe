// Package main provides the command line entry point for the Orochi Mail campaign service
package main

import (
	"fmt"
	"os"

	"github.com/amirphl/Orochi-Mail/app/logging"
	"github.com/amirphl/Orochi-Mail/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:          "orochi-mail",
	Short:        "Orochi Mail - email campaign lifecycle service",
	Long:         `Orochi Mail builds email campaigns step by step, prices them against the audience, takes payment and hands paid campaigns to delivery.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("orochi-mail %s (built %s)\n", version, buildTime)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads the configuration and builds the process logger
func bootstrap() (*config.ProductionConfig, *zap.Logger, error) {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger.With(zap.String("env", cfg.Deployment.Environment)), nil
}
