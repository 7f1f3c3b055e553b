package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/smsrelay/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "smsrelay",
	Short: "Relay SMS webhooks to a conversational backend",
	Long: "smsrelay receives inbound SMS webhooks from a telephony provider,\n" +
		"binds each sender to a backend conversation, and relays replies back\n" +
		"as segmented text messages.",
	SilenceUsage: true,
}

func init() {
	defaultPath := filepath.Join(os.Getenv("HOME"), ".smsrelay", "config.json")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultPath, "config file path")
}

// loadConfig loads the config file, exiting on failure. Commands that can
// run without a daemon still need the data dir and credentials from it.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
