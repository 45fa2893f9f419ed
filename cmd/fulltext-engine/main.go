// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the fulltext-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/fulltext-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when set, the environment variable envKey
// when set, or the .secrets/ entry for secretKey. Flags beat environment
// beats key files.
func secretDefault(fallback, envKey, secretKey string) string {
	if fallback != "" {
		return fallback
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if v, ok := loadedSecrets[secretKey]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the fulltext-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "fulltext-engine",
	Short: "Batched full-text acquisition for scholarly articles",
	Long: `fulltext-engine acquires full-text scholarly articles in bulk. Given a
list of DOIs it resolves them to source-specific canonical IDs, fetches the
article XML in batches with rate limiting and retry, normalizes the markup
into nested sections, and appends the results to a resumable JSON result set.

Each stage is a subcommand: fulltext runs the acquisition pipeline, index
maintains a local SQLite search index over the acquired articles.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; API keys may live there instead of the shell.
		godotenv.Load()

		s, err := secrets.Load(".secrets/")
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
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./fulltext-engine.yaml or ~/.config/fulltext-engine/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("fulltext-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "fulltext-engine"))
		}
	}

	viper.SetEnvPrefix("FULLTEXT_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
