package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/smsrelay/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("smsrelay Setup Wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.Backend.BaseURL = prompt(scanner, "Backend base URL", cfg.Backend.BaseURL)
		cfg.Backend.APIKey = prompt(scanner, "Backend API key (optional)", cfg.Backend.APIKey)

		cfg.SMS.AccountSid = prompt(scanner, "Twilio account SID", cfg.SMS.AccountSid)
		cfg.SMS.AuthToken = prompt(scanner, "Twilio auth token", cfg.SMS.AuthToken)
		cfg.SMS.PublicURL = prompt(scanner, "Public base URL (as seen by Twilio)", cfg.SMS.PublicURL)

		allowed := prompt(scanner, "Allowed sender numbers (comma-separated, empty allows all)",
			strings.Join(cfg.SMS.AllowedSenders, ","))
		cfg.SMS.AllowedSenders = nil
		for _, a := range strings.Split(allowed, ",") {
			if a = strings.TrimSpace(a); a != "" {
				cfg.SMS.AllowedSenders = append(cfg.SMS.AllowedSenders, a)
			}
		}

		maxCharsStr := prompt(scanner, "Max characters per segment", strconv.Itoa(cfg.SMS.MaxSegmentChars))
		if n, err := strconv.Atoi(maxCharsStr); err == nil {
			cfg.SMS.MaxSegmentChars = n
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
