package main

import (
	"github.com/spf13/cobra"
)

// Global flags.
var (
	configFile string
	logLevel   string
	dryRun     bool
)

var rootCmd = &cobra.Command{
	Use:   "storyflow",
	Short: "Generate Jira stories from a topic with an approval step",
	Long: `storyflow asks an LLM to write a user story for a topic, shows a preview,
and creates the story in Jira once you approve it. Approved stories can be
split into subtasks that are created in parallel.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ~/.config/storyflow/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "create issues in an in-memory tracker instead of Jira")
}
