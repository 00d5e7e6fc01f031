package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/arbor/internal/cli"
	"github.com/aretw0/arbor/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "arbor",
	Short: "Arbor is a branching visual novel engine",
	Long: `Arbor reads, authors and serves branching stories built from scene,
choice, branch and ending nodes.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to an arbor.yaml configuration file")
	rootCmd.PersistentFlags().String("dir", "", "Directory containing the story library (overrides the config)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// loadConfig resolves the configuration of a command. A positional
// directory argument acts like --dir.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.Library = dir
	} else if len(args) > 0 {
		cfg.Library = args[0]
	}
	return cfg, nil
}

// openStack builds the engine of a command. Logs go to Stderr so Stdout
// stays free for stories, diagrams and JSON.
func openStack(cmd *cobra.Command, args []string) (*cli.Stack, error) {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return nil, err
	}
	debug, _ := cmd.Flags().GetBool("debug")
	logger, err := cli.NewLogger(cmd.ErrOrStderr(), cfg.Log, debug)
	if err != nil {
		return nil, err
	}
	return cli.NewEngine(cmd.Context(), cfg, logger)
}
