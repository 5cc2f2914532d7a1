package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/td/internal/config"
	"github.com/mschirtzinger/td/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: GroupSetup,
	Short:   "Show or change settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		values := cfg.Values()
		if jsonOutput {
			m := make(map[string]string, len(values))
			for _, kv := range values {
				m[kv[0]] = kv[1]
			}
			return writeJSON(m)
		}

		source := cfg.Path
		if source == "" {
			source = "defaults (no config file)"
		}
		fmt.Printf("%s %s\n", ui.RenderHeader("Config:"), source)
		fmt.Println(ui.RenderSeparator())

		width := 0
		for _, kv := range values {
			width = max(width, len(kv[0]))
		}
		for _, kv := range values {
			fmt.Printf("%-*s  %s\n", width, kv[0], kv[1])
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a setting to the config file",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.Keys(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.Set(path, args[0], args[1]); err != nil {
			return err
		}
		printf("%s Set %s = %s in %s\n", ui.RenderPassIcon(), args[0], args[1], path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
