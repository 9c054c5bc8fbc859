// Command focusbeat runs the local focus app backend.
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"focusbeat/backend/internal/config"
	"focusbeat/backend/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "focusbeat",
	Short: "Focus timer, mood music and ad slots served to the local web UI",
	Long: `focusbeat keeps a stopwatch/pomodoro timer, a mood playlist player with an
optional 8D pan and the page's ad slots for every local profile, and serves
them to the web UI over a JSON and server-sent events API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml or toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(catalogCmd)
}

// loadConfig reads the config and builds the root logger. Flags override
// the config file and environment.
func loadConfig() (config.Config, hclog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	return cfg, logging.New("focusbeat", cfg.Log.Level, cfg.Log.Format, os.Stderr), nil
}
