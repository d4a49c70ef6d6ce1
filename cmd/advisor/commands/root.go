// Package commands provides the CLI commands for the advisor service.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "advisor",
	Short: "Advisor - conversational investment education service",
	Long: `Advisor answers natural-language investment questions with a locally
hosted language model, grounded by a built-in financial knowledge base.

Run 'advisor serve' to start the HTTP service, 'advisor ask' to send a
question to a running server, or 'advisor health' to check one.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand, show help
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("advisor %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(healthCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
