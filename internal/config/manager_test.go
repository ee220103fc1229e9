package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{
		"server": {"addr": "127.0.0.1:9900"},
		"logging": {"level": "debug", "console": true},
		"ntfy": {
			"publish": {"enabled": true, "base_url": "https://ntfy.sh", "topic": "zentik"}
		},
		"settings": {"driver": "memory"}
	}`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9900" {
		t.Fatalf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("Level = %q", cfg.Logging.Level)
	}
	if !cfg.Ntfy.Publish.Enabled || cfg.Ntfy.Publish.Topic != "zentik" {
		t.Fatalf("ntfy publish = %+v", cfg.Ntfy.Publish)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `
server:
  addr: "127.0.0.1:9901"
logging:
  level: info
  console: true
ntfy:
  subscribe:
    enabled: true
    base_url: "https://ntfy.sh"
    topic: inbox
settings:
  driver: memory
`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9901" {
		t.Fatalf("Addr = %q", cfg.Server.Addr)
	}
	if !cfg.Ntfy.Subscribe.Enabled || cfg.Ntfy.Subscribe.Topic != "inbox" {
		t.Fatalf("ntfy subscribe = %+v", cfg.Ntfy.Subscribe)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"server": {"addr": "127.0.0.1:1", "typo_field": 1}}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"logging":{"level":"info"}}{"extra":true}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("trailing data accepted")
	}
}

func TestParseFillsDefaults(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{}`)
	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.Addr == "" {
		t.Fatal("empty config did not inherit the default addr")
	}
	if cfg.Settings.Driver != "memory" {
		t.Fatalf("default settings driver = %q", cfg.Settings.Driver)
	}
}

func TestValidateRules(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default is valid", mutate: func(*Config) {}},
		{name: "publish without topic", mutate: func(c *Config) {
			c.Ntfy.Publish.Enabled = true
			c.Ntfy.Publish.Topic = ""
		}, wantErr: true},
		{name: "subscribe without base url", mutate: func(c *Config) {
			c.Ntfy.Subscribe.Enabled = true
			c.Ntfy.Subscribe.Topic = "t"
		}, wantErr: true},
		{name: "sqlite without path", mutate: func(c *Config) {
			c.Settings.Driver = "sqlite"
		}, wantErr: true},
		{name: "bad level", mutate: func(c *Config) {
			c.Logging.Level = "loud"
		}, wantErr: true},
		{name: "bad retry duration", mutate: func(c *Config) {
			c.Ntfy.Publish.RetryBase = "half a second"
		}, wantErr: true},
		{name: "telegram enabled without token", mutate: func(c *Config) {
			c.Telegram = &TelegramConfig{Enabled: true, ChatID: 1}
		}, wantErr: true},
		{name: "valid telegram", mutate: func(c *Config) {
			c.Telegram = &TelegramConfig{Enabled: true, Token: "t", ChatID: 1}
		}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
