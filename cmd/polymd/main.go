// Copyright PolyMD Authors, 2026. All rights reserved.

// Package main is the entry point for the polymd CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/apaudelx/PolyMD/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the polymd CLI.
var rootCmd = &cobra.Command{
	Use:   "polymd",
	Short: "Extract polymer simulation properties from the literature",
	Long: `polymd runs a literature extraction pipeline for polymer property data.
It resolves bibliographic metadata for DOI-identified articles, extracts
numerical simulation results with a language model, and verifies every
extracted value against the source text with two independent verifier
models.

Each pipeline stage is a subcommand: resolve, extract, verify, and
report. Stages read and write plain files so runs can be inspected and
resumed; the report subcommand summarizes the run ledger.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
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

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./polymd.yaml or ~/.config/polymd/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("polymd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "polymd"))
		}
	}

	viper.SetEnvPrefix("POLYMD")
	viper.AutomaticEnv()

	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
