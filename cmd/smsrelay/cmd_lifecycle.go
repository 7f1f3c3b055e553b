package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(stopCmd, restartCmd)
}

func pidFilePath() string {
	return filepath.Join(loadConfig().DataDir, "smsrelay.pid")
}

// signalDaemon resolves the daemon's PID from the PID file, confirms the
// process is alive (signal 0), and delivers sig to it.
func signalDaemon(sig syscall.Signal) (int, error) {
	pidPath := pidFilePath()

	data, err := os.ReadFile(pidPath)
	if os.IsNotExist(err) {
		return 0, fmt.Errorf("daemon not running (no PID file at %s)", pidPath)
	}
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("PID file %s is malformed: %w", pidPath, err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return 0, fmt.Errorf("daemon not running (stale PID file, process %d gone)", pid)
	}
	if err := proc.Signal(sig); err != nil {
		return 0, fmt.Errorf("signal process %d: %w", pid, err)
	}
	return pid, nil
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := signalDaemon(syscall.SIGTERM)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Stopping daemon (PID %d).\n", pid)
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// SIGHUP makes serve re-exec itself in place.
		pid, err := signalDaemon(syscall.SIGHUP)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Restarting daemon (PID %d).\n", pid)
		return nil
	},
}
