package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"socialia/internal/jitter"
	"socialia/internal/platform"
	"socialia/internal/storage"
	logx "socialia/pkg/logx"
)

// tokenEnv maps a platform to the variable read when neither token nor
// token_env is configured.
var tokenEnv = map[string]string{
	"twitter":  "TWITTER_ACCESS_TOKEN",
	"linkedin": "LINKEDIN_ACCESS_TOKEN",
	"reddit":   "REDDIT_ACCESS_TOKEN",
	"slack":    "SLACK_BOT_TOKEN",
	"telegram": "TELEGRAM_BOT_TOKEN",
}

const slackWebhookEnv = "SLACK_WEBHOOK_URL"

// Validate checks every field that has a fixed syntax.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := jitter.ParseBias(c.Scheduler.Bias); err != nil {
		return errors.Wrap(err, "scheduler.bias")
	}
	if c.Scheduler.Fluctuation < 0 {
		return errors.New("scheduler.fluctuation must be >= 0")
	}
	if _, err := ParseDurationField("store.busy_timeout", c.Store.BusyTimeout); err != nil {
		return err
	}
	for name, p := range c.Platforms {
		if _, err := ParseDurationField("platforms."+name+".timeout", p.Timeout); err != nil {
			return err
		}
		if _, err := ParseDurationField("platforms."+name+".min_interval", p.MinInterval); err != nil {
			return err
		}
	}
	return nil
}

// Location resolves scheduler.timezone; empty means time.Local.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Scheduler.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errors.Wrapf(err, "scheduler.timezone %q", tz)
	}
	return loc, nil
}

func (c *Config) Bias() jitter.Bias {
	b, _ := jitter.ParseBias(c.Scheduler.Bias)
	return b
}

// StoreConfig converts the store section; override, when set, replaces the path.
func (c *Config) StoreConfig(override string) storage.Config {
	path := c.Store.Path
	if override != "" {
		path = override
	}
	bt, _ := ParseDurationField("store.busy_timeout", c.Store.BusyTimeout)
	return storage.Config{Driver: c.Store.Driver, Path: ExpandHome(path), BusyTimeout: bt}
}

// LogConfig converts the logging section for logx.New.
func (c *Config) LogConfig() logx.Config {
	l := c.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: ExpandHome(l.File.Path)},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

// Platform builds the client settings for name, resolving the token through
// getenv (os.Getenv when nil).
func (c *Config) Platform(name string, getenv func(string) string) platform.Config {
	if getenv == nil {
		getenv = os.Getenv
	}
	name = platform.Normalize(name)
	p := c.Platforms[name]

	token := strings.TrimSpace(p.Token)
	if token == "" && p.TokenEnv != "" {
		token = strings.TrimSpace(getenv(p.TokenEnv))
	}
	if token == "" && tokenEnv[name] != "" {
		token = strings.TrimSpace(getenv(tokenEnv[name]))
	}
	webhook := p.WebhookURL
	if webhook == "" && name == "slack" {
		webhook = getenv(slackWebhookEnv)
	}
	timeout, _ := ParseDurationField("", p.Timeout)
	minInterval, _ := ParseDurationField("", p.MinInterval)
	return platform.Config{
		Token:       token,
		BaseURL:     p.BaseURL,
		UserAgent:   p.UserAgent,
		ChatID:      p.ChatID,
		Channel:     p.Channel,
		WebhookURL:  strings.TrimSpace(webhook),
		Timeout:     timeout,
		MinInterval: minInterval,
	}
}
