// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the mdconvert CLI, which converts
// documents to Markdown through markitdown, a container image, Azure
// Document Intelligence or the built-in native engine.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/mdconvert/internal/logging"
	"github.com/pdiddy/mdconvert/internal/secrets"
	"github.com/pdiddy/mdconvert/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is decoded from viper before any command runs.
	cfg types.Config

	// logger is built from cfg.Log.
	logger = zerolog.Nop()

	// loadedSecrets holds credentials loaded from .secrets/ at startup.
	loadedSecrets map[string]string
)

// secretDefault returns fallback when set, else the environment variable
// env, else the secret stored under key.
func secretDefault(key, env, fallback string) string {
	if fallback != "" {
		return fallback
	}
	return secrets.Resolve(loadedSecrets, key, env)
}

// rootCmd is the base command for the mdconvert CLI.
var rootCmd = &cobra.Command{
	Use:   "mdconvert [file]",
	Short: "Convert documents to Markdown",
	Long: `mdconvert converts PDF, Office, HTML, CSV and other documents to Markdown.

Given a file, it converts it straight away (the same as "mdconvert convert").
Conversions run through markitdown when it is installed, through the
markitdown container image otherwise, and through Azure Document
Intelligence when an endpoint is given. HTML, text and CSV files can be
converted without any external tooling.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("decoding config: %w", err)
		}
		logger = logging.New(cfg.Log)
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug().Str("file", used).Msg("using config file")
		}

		s, err := secrets.Load(".secrets/", logger)
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
			logger.Debug().Strs("keys", keys).Msg("loaded secrets")
		}
		cfg.DocIntel.APIKey = secretDefault(secrets.DocIntelAPIKey, "MDCONVERT_DOCINTEL_API_KEY", cfg.DocIntel.APIKey)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runConvert(cmd, args[0])
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./mdconvert.yaml or ~/.config/mdconvert/mdconvert.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	addConvertFlags(rootCmd)
}

// setDefaults registers every config key so environment variables can
// override keys absent from the config file.
func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()

	v.SetDefault("engine.backend", string(types.BackendAuto))
	v.SetDefault("engine.markitdown_bin", "")
	v.SetDefault("engine.image", "markitdown:latest")

	v.SetDefault("docintel.api_key", "")
	v.SetDefault("docintel.api_version", "2024-11-30")
	v.SetDefault("docintel.model", "prebuilt-layout")
	v.SetDefault("docintel.poll_interval", "1s")
	v.SetDefault("docintel.timeout", "5m")
	v.SetDefault("docintel.max_retries", 3)

	v.SetDefault("history.path", filepath.Join(home, ".config", "mdconvert", "history.db"))
	v.SetDefault("history.max_recent", 10)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
}

func initConfig() {
	// A missing .env is fine.
	_ = godotenv.Load()

	setDefaults(viper.GetViper())

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("mdconvert")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "mdconvert"))
		}
	}

	viper.SetEnvPrefix("MDCONVERT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "warning: reading config %s: %v\n", cfgFile, err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}
