package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks structural constraints (tags) plus the cross-field rules
// the tag language cannot express. It is installed as the manager's
// validator hook so a bad edit never replaces a good running config.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := structValidator.Struct(cfg); err != nil {
		return err
	}

	if cfg.Ntfy.Publish.Enabled {
		if cfg.Ntfy.Publish.BaseURL == "" {
			return errors.New("ntfy.publish.base_url is required when publishing is enabled")
		}
		if cfg.Ntfy.Publish.Topic == "" {
			return errors.New("ntfy.publish.topic is required when publishing is enabled")
		}
	}
	if cfg.Ntfy.Subscribe.Enabled {
		if cfg.Ntfy.Subscribe.BaseURL == "" || cfg.Ntfy.Subscribe.Topic == "" {
			return errors.New("ntfy.subscribe.base_url and topic are required when subscribing is enabled")
		}
	}
	if cfg.Telegram != nil && cfg.Telegram.Enabled {
		if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
			return errors.New("telegram.token and chat_id are required when the channel is enabled")
		}
	}
	if cfg.Settings.Driver == "sqlite" || cfg.Settings.Driver == "sqlite3" {
		if cfg.Settings.Path == "" {
			return errors.New("settings.path is required for the sqlite driver")
		}
	}

	for path, raw := range map[string]string{
		"ntfy.publish.retry_base":      cfg.Ntfy.Publish.RetryBase,
		"ntfy.publish.retry_max_delay": cfg.Ntfy.Publish.RetryMaxDelay,
		"settings.busy_timeout":        cfg.Settings.BusyTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}

	if cfg.SelfTest != nil && cfg.SelfTest.Schedule != "" {
		// The cron spec itself is checked by the self-test service at start;
		// here we only reject the obviously empty-but-present case.
		if len(cfg.SelfTest.Schedule) > 256 {
			return fmt.Errorf("self_test.schedule is implausibly long")
		}
	}
	return nil
}
