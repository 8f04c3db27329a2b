/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/graphstream/buffertree/pkg/config"
	"github.com/graphstream/buffertree/pkg/tree"
)

type ctxKey string

const configCtxKey ctxKey = "config"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "buffertreed",
	Short: "buffertreed - external-memory buffered routing tree",
	Long: `buffertreed runs a B-ary external-memory buffer tree that batches
high-throughput key/value updates in RAM and spills them through
cascading flushes to a backing file, handing completed leaf batches off
to a downstream consumer.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}

		var cfg *config.Config
		var err error
		if config.ConfigExists(configPath) {
			cfg, err = config.LoadConfig(configPath)
		} else {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			cfg, err = config.BootstrapConfig(configPath, dataDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" && dataDir != "./data" {
			cfg.DataDir = dataDir
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		cmd.SetContext(context.WithValue(cmd.Context(), configCtxKey, cfg))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to
// happen once to rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("data-dir", "d", "./data", "Data directory for the tree's backing file and sink store")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: OS-specific location)")
}

func configFromContext(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configCtxKey).(*config.Config)
	if !ok {
		return nil, fmt.Errorf("config not found in command context")
	}
	return cfg, nil
}

// newTree builds a tree.Tree from the resolved configuration, rooted
// at <data-dir>/tree for its backing file.
func newTree(cfg *config.Config) (*tree.Tree, error) {
	dir := cfg.DataDir + "/tree"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tree data dir: %w", err)
	}

	return tree.New(tree.Config{
		Dir:        dir,
		N:          cfg.Tree.N,
		B:          cfg.Tree.B,
		PageSize:   cfg.Tree.PageSize,
		BufferSize: cfg.Tree.BufferSize,
		Workers:    cfg.Tree.Workers,
		Reset:      cfg.Tree.Reset,
		QueueDepth: cfg.Tree.QueueDepth,
	})
}
