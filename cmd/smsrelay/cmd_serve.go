package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/user/smsrelay/internal/backend"
	"github.com/user/smsrelay/internal/gateway"
	"github.com/user/smsrelay/internal/provider"
	"github.com/user/smsrelay/internal/state"
	"github.com/user/smsrelay/internal/webhook"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the smsrelay daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "smsrelay.pid")
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	store := state.NewConversationStore(cfg.DataDir)

	adapter, err := provider.New(cfg.SMS)
	if err != nil {
		return fmt.Errorf("create sms adapter: %w", err)
	}

	backendClient := backend.New(cfg.Backend.BaseURL, cfg.Backend.APIKey)

	gw := gateway.New(cfg.SMS, adapter, store, backendClient, int64(cfg.MaxConcurrent))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw.Start(ctx)
	defer gw.Stop()

	slog.Info("smsrelay started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"provider", cfg.SMS.Provider,
		"inbound_path", cfg.SMS.InboundPath,
		"reply_mode", cfg.SMS.ReplyMode,
		"verify_signatures", cfg.SMS.VerifySignatures,
		"pid_file", pidPath,
	)

	if cfg.HTTP.Enabled {
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: webhook.NewServer(cfg.SMS, gw),
		}
		go func() {
			slog.Info("webhook server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("webhook server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	} else {
		slog.Warn("http server disabled; no webhooks will be received")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		// SIGINT or SIGTERM
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
