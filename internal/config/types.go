package config

// Config is the whole configuration file.
//
// Example (YAML):
//
//	scheduler:
//	  interval: 60s
//	  timezone: Europe/Berlin
//	  fluctuation: 5
//	  bias: late
//	store:
//	  driver: file
//	  path: ~/.socialia/scheduled.json
//	platforms:
//	  twitter:
//	    token_env: X_TOKEN
//	    min_interval: 30s
//	  telegram:
//	    chat_id: -1001234567890
type Config struct {
	Logging   LoggingConfig             `json:"logging"`
	Store     StoreConfig               `json:"store"`
	Scheduler SchedulerConfig           `json:"scheduler"`
	Platforms map[string]PlatformConfig `json:"platforms,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards warn+ records to platforms.telegram's chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StoreConfig selects the job store.
type StoreConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type SchedulerConfig struct {
	// Interval is the daemon tick: a Go duration, seconds, or a cron expression.
	Interval string `json:"interval,omitempty"`
	// Timezone interprets draft SCHEDULED stamps and absolute times. Empty means local.
	Timezone string `json:"timezone,omitempty"`
	// Fluctuation is the default jitter in minutes for org schedule/sync.
	Fluctuation int    `json:"fluctuation,omitempty"`
	Bias        string `json:"bias,omitempty"`
}

// PlatformConfig holds credentials and transport settings for one platform.
// The token is taken from Token, else from the TokenEnv variable, else from
// the platform's default variable (e.g. TWITTER_ACCESS_TOKEN).
type PlatformConfig struct {
	Token       string `json:"token,omitempty"`
	TokenEnv    string `json:"token_env,omitempty"`
	BaseURL     string `json:"base_url,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	ChatID      int64  `json:"chat_id,omitempty"`
	Channel     string `json:"channel,omitempty"`
	WebhookURL  string `json:"webhook_url,omitempty"`
	Timeout     string `json:"timeout,omitempty"`
	MinInterval string `json:"min_interval,omitempty"`
}
