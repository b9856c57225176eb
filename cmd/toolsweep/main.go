// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the toolsweep CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/toolsweep/internal/logging"
	"github.com/pdiddy/toolsweep/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

const defaultTimeout = 60 * time.Second

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the toolsweep CLI.
var rootCmd = &cobra.Command{
	Use:   "toolsweep",
	Short: "Literature crawler and tool-usage extraction pipeline",
	Long: `toolsweep discovers candidate articles for a topic on the bioRxiv and
medRxiv preprint servers, extracts a structured assessment of each article's
use of the GATK and IGV toolkits with a language model, and consolidates the
results into one table.

Each stage is a subcommand: crawl walks a date range and caches discovered
DOIs, extract turns cached DOIs into schema-checked analysis artifacts, and
sweep joins the artifacts into a TSV or JSON table. All state lives under
--cache_path; interrupted runs resume without repeating completed work.`,
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

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./toolsweep.yaml or ~/.config/toolsweep/config.yaml)")
	rootCmd.PersistentFlags().String("cache_path", "./doi-cache", "cache directory for crawl state and artifacts")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("toolsweep")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "toolsweep"))
		}
	}

	viper.SetEnvPrefix("TOOLSWEEP")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// stringSetting resolves a string option: an explicitly set flag wins,
// then the config file, then the flag default.
func stringSetting(cmd *cobra.Command, flag, key string) string {
	if !cmd.Flags().Changed(flag) && viper.IsSet(key) {
		return viper.GetString(key)
	}
	v, _ := cmd.Flags().GetString(flag)
	return v
}

// intSetting resolves an integer option the same way.
func intSetting(cmd *cobra.Command, flag, key string) int {
	if !cmd.Flags().Changed(flag) && viper.IsSet(key) {
		return viper.GetInt(key)
	}
	v, _ := cmd.Flags().GetInt(flag)
	return v
}

func cachePath(cmd *cobra.Command) string {
	return stringSetting(cmd, "cache_path", "cache_path")
}

// userAgent returns the UA string sent with outbound requests, with a
// contact address appended when the crossref-email secret is present.
// Crossref routes polite traffic by it.
func userAgent() string {
	ua := "toolsweep/" + version
	if email := loadedSecrets["crossref-email"]; email != "" {
		ua += fmt.Sprintf(" (mailto:%s)", email)
	}
	return ua
}

// setupLogging routes slog to stderr and a log file inside the cache
// directory. The returned cleanup closes the file.
func setupLogging(cachePath string) func() {
	level := slog.LevelInfo
	if verbose, _ := rootCmd.PersistentFlags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}

	logger, cleanup := logging.Setup(filepath.Join(cachePath, "toolsweep.log"), level)
	slog.SetDefault(logger)

	return func() {
		if err := cleanup(); err != nil {
			fmt.Fprintln(os.Stderr, "closing log file:", err)
		}
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
