package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/storyflow/config"
)

var setLocal bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a value in the global (or local) config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := config.NewSaveConfig(config.StoryflowResolver(configFile))
		if setLocal {
			dir, err := os.Getwd()
			if err != nil {
				return err
			}
			return sc.SaveLocal(dir, args[0], args[1])
		}
		return sc.SaveGlobal(args[0], args[1])
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a value from the global config file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.NewSaveConfig(config.StoryflowResolver(configFile)).DeleteGlobalKey(args[0])
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every resolved value and where it came from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rc := config.StoryflowResolver(configFile)
		rc.ErrWriter = cmd.ErrOrStderr()
		resolved := config.NewResolver(rc).ResolveWithFlags(map[string]string{config.KeyLogLevel: logLevel})

		all := resolved.All()
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-40s (%s)\n", k, displayValue(k, all[k]), resolved.Source(k))
		}
		return nil
	},
}

func init() {
	configSetCmd.Flags().BoolVar(&setLocal, "local", false, "write to .storyflow.yaml in the current directory")
	configCmd.AddCommand(configSetCmd, configUnsetCmd, configListCmd)
	rootCmd.AddCommand(configCmd)
}

// displayValue masks secrets.
func displayValue(key, value string) string {
	if value == "" {
		return ""
	}
	for _, s := range []string{"token", "password", "secret", "api_key"} {
		if strings.Contains(key, s) {
			if len(value) <= 4 {
				return "****"
			}
			return value[:4] + "****"
		}
	}
	return value
}
