package config

// Config is the daemon configuration, read from JSON or YAML.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Server   ServerConfig    `json:"server"`
	Logging  LoggingConfig   `json:"logging"`
	Ntfy     NtfyConfig      `json:"ntfy"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Settings SettingsConfig  `json:"settings"`
	Parsers  ParsersConfig   `json:"parsers,omitempty"`
	SelfTest *SelfTestConfig `json:"self_test,omitempty"`
}

// ServerConfig controls the webhook ingest listener.
type ServerConfig struct {
	Addr string `json:"addr" validate:"omitempty,hostname_port"`
	// MaxBodyBytes caps accepted webhook bodies. 0 means the 1 MiB default.
	MaxBodyBytes int64 `json:"max_body_bytes,omitempty" validate:"gte=0"`
}

type LoggingConfig struct {
	Level   string     `json:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// NtfyConfig controls both directions of the ntfy relay.
type NtfyConfig struct {
	Publish   NtfyPublishConfig   `json:"publish"`
	Subscribe NtfySubscribeConfig `json:"subscribe"`
}

type NtfyPublishConfig struct {
	Enabled   bool   `json:"enabled"`
	BaseURL   string `json:"base_url,omitempty" validate:"omitempty,url"`
	Topic     string `json:"topic,omitempty"`
	Token     string `json:"token,omitempty"`
	Workers   int    `json:"workers,omitempty" validate:"gte=0"`
	QueueSize int    `json:"queue_size,omitempty" validate:"gte=0"`

	RatePerSec    int    `json:"rate_per_sec,omitempty" validate:"gte=0"`
	RetryMax      int    `json:"retry_max,omitempty" validate:"gte=0"`
	RetryBase     string `json:"retry_base,omitempty"`
	RetryMaxDelay string `json:"retry_max_delay,omitempty"`
}

type NtfySubscribeConfig struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"base_url,omitempty" validate:"omitempty,url"`
	Topic   string `json:"topic,omitempty"`
	Token   string `json:"token,omitempty"`
}

// TelegramConfig enables the secondary Telegram delivery channel.
type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	Token    string `json:"token,omitempty"`
	ChatID   int64  `json:"chat_id,omitempty"`
	ThreadID int    `json:"thread_id,omitempty"`
}

// SettingsConfig controls the per-user settings store.
//
// Driver values: "sqlite" (default when path set), "memory", "none".
type SettingsConfig struct {
	Driver      string `json:"driver,omitempty" validate:"omitempty,oneof=sqlite sqlite3 memory none"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// ParsersConfig tweaks the static registry.
type ParsersConfig struct {
	// Disabled lists builtInTypes to leave out of the registry.
	Disabled []string `json:"disabled,omitempty"`
}

// SelfTestConfig controls the periodic parser self-test run.
//
// Enabled is a pointer so "omitted" defaults to true while an explicit
// false still disables it.
type SelfTestConfig struct {
	Enabled *bool `json:"enabled,omitempty"`
	// Schedule is a cron spec (robfig/cron, including @every forms).
	Schedule string `json:"schedule,omitempty"`
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Addr: "127.0.0.1:8787"},
		Logging: LoggingConfig{Level: "info", Console: true},
		Ntfy: NtfyConfig{
			Publish: NtfyPublishConfig{BaseURL: "https://ntfy.sh"},
		},
		Settings: SettingsConfig{Driver: "memory"},
	}
}
