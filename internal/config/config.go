package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	HTTP          struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
	Backend struct {
		BaseURL string `json:"base_url"`
		APIKey  string `json:"api_key"`
	} `json:"backend"`
	SMS SMSConfig `json:"sms"`
}

// SMSConfig configures the SMS channel: which provider adapter to use, how
// inbound webhooks are verified, and how replies are shaped.
type SMSConfig struct {
	Enabled             bool              `json:"enabled"`
	Provider            string            `json:"provider"`
	InboundPath         string            `json:"inbound_path"`
	PublicURL           string            `json:"public_url"`
	AccountSid          string            `json:"account_sid"`
	AuthToken           string            `json:"auth_token"`
	AuthTokens          map[string]string `json:"auth_tokens,omitempty"`
	VerifySignatures    bool              `json:"verify_signatures"`
	APIBaseURL          string            `json:"api_base_url,omitempty"`
	AllowedSenders      []string          `json:"allowed_senders,omitempty"`
	AllowedDestinations []string          `json:"allowed_destinations,omitempty"`
	MaxSegmentChars     int               `json:"max_segment_chars"`
	SequenceLabels      bool              `json:"sequence_labels"`
	ReplyMode           string            `json:"reply_mode"`
	SendPacingMs        int               `json:"send_pacing_ms"`
	FallbackText        string            `json:"fallback_text"`
	UnauthorizedText    string            `json:"unauthorized_text"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".smsrelay"),
		MaxConcurrent: 2,
	}
	cfg.LogLevel = "info"
	cfg.HTTP.Enabled = true
	cfg.HTTP.Listen = ":8035"
	cfg.Backend.BaseURL = "http://127.0.0.1:8033"
	cfg.SMS.Enabled = true
	cfg.SMS.Provider = "twilio"
	cfg.SMS.InboundPath = "/webhooks/sms"
	cfg.SMS.VerifySignatures = true
	cfg.SMS.MaxSegmentChars = 1500
	cfg.SMS.ReplyMode = "inline"
	cfg.SMS.SendPacingMs = 500
	cfg.SMS.FallbackText = "Sorry, something went wrong processing your message."
	cfg.SMS.UnauthorizedText = "Sorry, this number is not authorized to use this service."

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if sid := os.Getenv("TWILIO_ACCOUNT_SID"); sid != "" {
		cfg.SMS.AccountSid = sid
	}
	if token := os.Getenv("TWILIO_AUTH_TOKEN"); token != "" {
		cfg.SMS.AuthToken = token
	}
	if apiKey := os.Getenv("SMSRELAY_BACKEND_API_KEY"); apiKey != "" {
		cfg.Backend.APIKey = apiKey
	}
	if baseURL := os.Getenv("SMSRELAY_BACKEND_URL"); baseURL != "" {
		cfg.Backend.BaseURL = baseURL
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}

// Save writes the config back to disk atomically.
func Save(path string, cfg *Config) error {
	return writeDefaults(path, cfg)
}
