// Package cli provides the forexcell command-line interface.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/forexcell/config"
	"github.com/dyike/forexcell/consts"
	"github.com/dyike/forexcell/internal/display"
	"github.com/dyike/forexcell/internal/logger"
)

// Run starts the CLI application.
func Run() {
	if err := NewRootCmd().Execute(); err != nil {
		display.Error(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           consts.AppName,
		Short:         "ForexCell - multi-agent forex analysis workflows",
		Long:          consts.Description + ".\nWorkflows are YAML files that chain data, economic, technical and LLM agents.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				level = "debug"
			}
			logger.SetRoot(logger.Console(level))
			return nil
		},
	}

	rootCmd.AddCommand(newBuildCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newAgentsCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config", "", "JSON config file (defaults and environment when empty)")

	return rootCmd
}

// loadConfig reads --config when given, otherwise the defaults with .env
// and environment overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if strings.TrimSpace(path) == "" {
		cfg := config.DefaultConfig()
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
		return *cfg, nil
	}
	mgr, err := config.NewManager(config.WithConfigPath(path), config.WithInitialConfig(config.DefaultConfig()))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	defer mgr.Close()
	return mgr.Get(), nil
}
