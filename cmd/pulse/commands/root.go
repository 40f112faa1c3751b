package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Pulse - personal health analytics backend",
	Long: `Pulse Unified CLI

Derives daily metrics, baselines, anomaly flags, recovery and strain
scores, and lagged correlations from raw health observations, and
serves them over a read-only HTTP API.

Usage:
  go run ./cmd/pulse [command]

Examples:
  go run ./cmd/pulse api
  go run ./cmd/pulse pipeline
  go run ./cmd/pulse scheduler
  go run ./cmd/pulse status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
