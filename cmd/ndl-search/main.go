// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the ndl-search CLI: search the NDL
// SRU endpoint, archive the normalized records locally and publish them
// to a downstream sink.
package main

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/ndl-search/internal/logging"
	"github.com/pdiddy/ndl-search/internal/secrets"
	"github.com/pdiddy/ndl-search/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the resolved configuration, populated before any command runs.
	cfg types.PipelineConfig

	// logger writes to stderr; stdout carries command output only.
	logger = zap.NewNop()

	// loadedSecrets holds credentials loaded from the secrets directory.
	loadedSecrets secrets.Secrets
)

// rootCmd is the base command for the ndl-search CLI.
var rootCmd = &cobra.Command{
	Use:   "ndl-search",
	Short: "Search the National Diet Library catalogue and publish the records",
	Long: `ndl-search sends CQL queries to the NDL Search SRU endpoint, maps the
dcndl responses to normalized bibliographic records, and optionally archives
them in a local SQLite database or publishes them to a downstream sink.

Queries are validated before they leave the machine, rate limited per query,
and cached in memory for the lifetime of the process.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		if v, _ := cmd.Flags().GetBool("verbose"); v {
			c.Log.Level = "debug"
		}
		cfg = c

		l, err := logging.New(logging.Options{JSON: cfg.Log.JSON, Level: cfg.Log.Level})
		if err != nil {
			return err
		}
		logger = l
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir, logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./ndl-search.yaml or ~/.config/ndl-search/config.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", secrets.DefaultDir, "directory of secret files (publish-token)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().Bool("log-json", false, "log as JSON")
	_ = viper.BindPFlag("log.json", rootCmd.PersistentFlags().Lookup("log-json"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("ndl-search")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "ndl-search"))
		}
	}

	configureViper(viper.GetViper())

	// A missing config file is fine; defaults and the environment apply.
	_ = viper.ReadInConfig()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
