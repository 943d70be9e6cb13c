// Package main provides tripctl, the offline maintenance tool for the trip
// store: schema migrations and batch normalization of agenda detail entries.
// It reads the same environment variables as the API server.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Global flags
var (
	logLevel string
	noColor  bool
)

var rootCmd = &cobra.Command{
	Use:   "tripctl",
	Short: "Maintenance commands for the trip store",
	Long: `tripctl runs maintenance jobs against the trip store configured by the
environment (STORE, DATABASE_URL, ...).

Examples:
  tripctl migrate                                   # Apply pending schema migrations
  tripctl normalize-details                         # Dry run: write a diff report only
  tripctl normalize-details --format csv            # Same, as CSV
  tripctl normalize-details --apply --concurrency 8 # Rewrite non-canonical details`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (defaults to LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(normalizeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}
