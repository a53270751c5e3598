// Expertd answers poultry-production questions in conversation, asking for
// the missing flock details when a question cannot be answered precisely and
// replaying the original question once they are given.
//
// Usage:
//
//	# Start the HTTP server
//	expertd serve --config expertd.yaml
//
//	# Load knowledge documents into the vector store
//	expertd ingest ./knowledge
//
//	# Chat from the terminal
//	expertd ask
//
// Configuration comes from an optional YAML file overlaid with EXPERT_*
// environment variables. See internal/config.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the --config flag shared by all commands.
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "expertd",
	Short: "Conversational poultry-production expert",
	Long: `expertd answers questions about broiler and layer flocks.

It consolidates what the user has said about their flock across the
conversation (breed, age, sex, weight...), asks for missing details when a
question cannot be answered precisely, and automatically answers the original
question once the details arrive.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML configuration file")
	rootCmd.SetVersionTemplate(versionString() + "\n")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionString())
	},
}

func versionString() string {
	return fmt.Sprintf("expertd %s (commit %s, built %s)", version, gitCommit, buildDate)
}
