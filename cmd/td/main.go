// Command td is a todo list kept in a git repository and synchronized
// with a remote.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/td/internal/config"
	"github.com/mschirtzinger/td/internal/logging"
	"github.com/mschirtzinger/td/internal/ui"
)

// Command groups
const (
	GroupTasks = "tasks"
	GroupSync  = "sync"
	GroupSetup = "setup"
)

var (
	configPath  string
	dataDirFlag string
	verboseFlag bool
	quietFlag   bool
	jsonOutput  bool
	noColor     bool

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:           "td",
	Short:         "td - a todo list replicated through git",
	Long:          `A todo list stored as one JSON record per line in a git repository, synchronized with a remote by "td sync".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		if cmd.Flags().Changed("data-dir") {
			overrides[config.KeyDataDir] = dataDirFlag
		}

		var err error
		cfg, err = config.Load(config.LoadOptions{Path: configPath, Overrides: overrides})
		if err != nil {
			return err
		}

		logger, err = logging.New(logging.Options{
			File:    cfg.Log.File,
			Level:   cfg.Log.Level,
			Verbose: verboseFlag,
		})
		if err != nil {
			return err
		}

		ui.Configure(!noColor && ui.ShouldUseColor(os.Stdout))

		for _, w := range cfg.Warnings {
			logger.Warn("config", "warning", w)
			if !quietFlag {
				WarnError("%s", w)
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Close()
		}
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupTasks, Title: "Working With Todos:"},
		&cobra.Group{ID: GroupSync, Title: "Sync & Data:"},
		&cobra.Group{ID: GroupSetup, Title: "Setup & Configuration:"},
	)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/td/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory holding the repository (overrides data-dir)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

// printf writes progress output unless --quiet is set.
func printf(format string, args ...any) {
	if quietFlag {
		return
	}
	fmt.Printf(format, args...)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		reportError(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}
