package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultDataRoot          = "data"
	DefaultHistoryWindow     = 20
	DefaultBackupRetain      = 3
	DefaultDedupWindow       = 10
	DefaultFragmentLimit     = 300
	DefaultFragmentDelayMs   = 700
	DefaultPollIntervalMs    = 2000
	DefaultPollMaxAttempts   = 45
	DefaultBackendTimeoutSec = 15
	DefaultLanguageCode      = "es-US"
)

type Config struct {
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	Storage    StorageConfig    `toml:"storage"`
	History    HistoryConfig    `toml:"history"`
	Dedup      DedupConfig      `toml:"dedup"`
	Transcribe TranscribeConfig `toml:"transcribe"`
	Backend    BackendConfig    `toml:"backend"`
	Outbound   OutboundConfig   `toml:"outbound"`
	Meta       MetaConfig       `toml:"meta"`
	Twilio     TwilioConfig     `toml:"twilio"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// StorageConfig configures the blob store backing history and media uploads.
type StorageConfig struct {
	DataRoot string `toml:"data_root" validate:"required"`
}

type HistoryConfig struct {
	// Window is the number of recent turns forwarded to the generation
	// backend. The durable log itself is never trimmed.
	Window       int `toml:"window" validate:"gt=0"`
	BackupRetain int `toml:"backup_retain" validate:"gt=0"`
}

type DedupConfig struct {
	// Window is the number of recent turns inspected for duplicates.
	Window int `toml:"window" validate:"gt=0"`
	// RequireMessageID rejects events without a provider message ID instead
	// of skipping deduplication for them.
	RequireMessageID bool `toml:"require_message_id"`
}

type TranscribeConfig struct {
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	LanguageCode    string `toml:"language_code"`
	PollIntervalMs  int    `toml:"poll_interval_ms" validate:"gt=0"`
	PollMaxAttempts int    `toml:"poll_max_attempts" validate:"gt=0"`
}

type BackendConfig struct {
	BaseURL    string `toml:"base_url"`
	TimeoutSec int    `toml:"timeout_sec" validate:"gt=0"`
}

type OutboundConfig struct {
	FragmentLimit   int `toml:"fragment_limit" validate:"gt=0"`
	FragmentDelayMs int `toml:"fragment_delay_ms" validate:"gte=0"`
}

// MetaConfig holds WhatsApp Cloud API (graph webhook) credentials.
type MetaConfig struct {
	AccessToken   string `toml:"access_token"`
	PhoneNumberID string `toml:"phone_number_id"`
	VerifyToken   string `toml:"verify_token"`
	AppSecret     string `toml:"app_secret"`
}

// TwilioConfig holds Twilio WhatsApp credentials.
type TwilioConfig struct {
	AccountSID string `toml:"account_sid"`
	AuthToken  string `toml:"auth_token"`
	FromNumber string `toml:"from_number"`
	// ValidateSignature enables X-Twilio-Signature verification. It needs
	// PublicURL to match the URL Twilio signed.
	ValidateSignature bool   `toml:"validate_signature"`
	PublicURL         string `toml:"public_url"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Storage: StorageConfig{
			DataRoot: DefaultDataRoot,
		},
		History: HistoryConfig{
			Window:       DefaultHistoryWindow,
			BackupRetain: DefaultBackupRetain,
		},
		Dedup: DedupConfig{
			Window: DefaultDedupWindow,
		},
		Transcribe: TranscribeConfig{
			LanguageCode:    DefaultLanguageCode,
			PollIntervalMs:  DefaultPollIntervalMs,
			PollMaxAttempts: DefaultPollMaxAttempts,
		},
		Backend: BackendConfig{
			TimeoutSec: DefaultBackendTimeoutSec,
		},
		Outbound: OutboundConfig{
			FragmentLimit:   DefaultFragmentLimit,
			FragmentDelayMs: DefaultFragmentDelayMs,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate checks structural constraints on the loaded config.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
