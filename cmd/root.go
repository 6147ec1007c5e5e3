package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/axellelanca/shortlink/internal/config"
	"github.com/axellelanca/shortlink/internal/logger"
)

// Cfg is the global variable that will contain the loaded configuration
// It will be accessible to all Cobra commands throughout the application
var Cfg *config.Config

var cfgFile string

// RootCmd is the base command for the CLI application
// All other commands (run-server, migrate, create, stats, list, delete) are added as subcommands
var RootCmd = &cobra.Command{
	Use:   "shortlink",
	Short: "A URL shortener with click counting",
	Long: `shortlink turns long URLs into short codes, redirects visitors while
counting clicks, and manages the stored links from the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		Cfg = cfg
		if _, err := logger.Init(cfg.Log); err != nil {
			return fmt.Errorf("initialising logger: %w", err)
		}
		return nil
	},
}

// Execute is the main entry point for the Cobra application
// It is called from 'main.go' and handles command execution and error handling
func Execute() {
	err := RootCmd.Execute()
	if cerr := logger.Close(); cerr != nil {
		fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", cerr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Subcommands register themselves via their own init() functions,
	// which avoids import cycles with this package.
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./configs/config.yaml)")
}
