// Package cmd provides the sitepress command-line interface.
//
// Configuration is read from, highest priority first:
//  1. Command-line flags (--config, --log-level, --project-dir, ...)
//  2. SITEPRESS_<SECTION>_<KEY> environment variables, including those set
//     in a .env file in the working directory
//  3. The configuration file: --config, then SITEPRESS_CONFIG_FILE, then
//     .sitepress.yml in the working directory
//  4. Built-in defaults
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitepress/internal/config"
	"github.com/conneroisu/sitepress/internal/logging"
	"github.com/conneroisu/sitepress/internal/version"
)

var (
	cfgFile string
	onError policyValue
)

var rootCmd = &cobra.Command{
	Use:   "sitepress",
	Short: "Build a static website with cache-busted assets",
	Long: `Sitepress turns a source tree of HTML fragments, Sass stylesheets and
pre-compiled JavaScript bundles into a deployable site. Every build gets a
fresh cache-bust token and writes its assets under assets/<token>/.

Quick Start:
  sitepress build                 Build the site into ./build
  sitepress watch                 Rebuild whenever a source changes
  sitepress serve                 Serve the site with live reload
  sitepress cleanup               Remove scratch directories`,
	Version:       version.Get().Short(),
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .sitepress.yml, can also use SITEPRESS_CONFIG_FILE env var)")
	flags.StringP("project-dir", "C", ".", "project directory")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
	flags.Var(&onError, "on-error", "failure policy for stylesheets and dependencies (abort, continue)")

	_ = viper.BindPFlag("project_dir", flags.Lookup("project-dir"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))
}

func initConfig() {
	// A missing .env is normal; a malformed one is worth knowing about.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Ignoring .env:", err)
	}

	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case os.Getenv("SITEPRESS_CONFIG_FILE") != "":
		viper.SetConfigFile(os.Getenv("SITEPRESS_CONFIG_FILE"))
	default:
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sitepress")
	}

	viper.SetEnvPrefix("SITEPRESS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig decodes the merged configuration and builds the logger
// every command logs through.
func loadConfig() (*config.Config, logging.Logger, error) {
	if onError != "" {
		viper.Set("styles.on_error", string(onError))
		viper.Set("deps.on_error", string(onError))
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	return cfg, logger, nil
}
