package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"socialia/internal/jitter"
)

func writeConfig(t *testing.T, name, body string) *Manager {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return NewManager(p)
}

func TestLoadFormats(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name, file, body string
	}{
		{"yaml", "c.yaml", "scheduler:\n  interval: 30s\n  fluctuation: 5\n  bias: late\nplatforms:\n  twitter:\n    token: abc\n    min_interval: 1m\n"},
		{"toml", "c.toml", "[scheduler]\ninterval = \"30s\"\nfluctuation = 5\nbias = \"late\"\n\n[platforms.twitter]\ntoken = \"abc\"\nmin_interval = \"1m\"\n"},
		{"json", "c.json", `{"scheduler":{"interval":"30s","fluctuation":5,"bias":"late"},"platforms":{"twitter":{"token":"abc","min_interval":"1m"}}}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := writeConfig(t, tc.file, tc.body).Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Scheduler.Interval != "30s" || cfg.Scheduler.Fluctuation != 5 || cfg.Bias() != jitter.BiasLate {
				t.Fatalf("scheduler = %+v", cfg.Scheduler)
			}
			pc := cfg.Platform("twitter", func(string) string { return "" })
			if pc.Token != "abc" || pc.MinInterval != time.Minute {
				t.Fatalf("platform = %+v", pc)
			}
			// Sections missing from the file keep their defaults.
			if cfg.Store.Driver != "file" || cfg.Logging.Level != "info" {
				t.Fatalf("defaults lost: %+v", cfg)
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg || !strings.HasSuffix(cfg.Store.Path, filepath.Join(DirName, "scheduled.json")) {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	t.Parallel()
	cases := map[string]struct{ file, body string }{
		"unknown key":  {"c.yaml", "schedular:\n  interval: 1m\n"},
		"bad bias":     {"c.yaml", "scheduler:\n  bias: sideways\n"},
		"bad timezone": {"c.yaml", "scheduler:\n  timezone: Mars/Olympus\n"},
		"bad duration": {"c.yaml", "platforms:\n  slack:\n    timeout: soon\n"},
		"trailing":     {"c.json", `{"scheduler":{}}{"x":1}`},
		"broken toml":  {"c.toml", "[scheduler\n"},
	}
	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := writeConfig(t, tc.file, tc.body).Parse(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPlatformTokenResolution(t *testing.T) {
	t.Parallel()
	env := map[string]string{
		"MY_TOKEN":             "from-token-env",
		"TWITTER_ACCESS_TOKEN": "from-default-env",
		"SLACK_WEBHOOK_URL":    "https://hooks.example/x",
	}
	getenv := func(k string) string { return env[k] }
	cfg := &Config{Platforms: map[string]PlatformConfig{
		"linkedin": {Token: "inline", TokenEnv: "MY_TOKEN"},
		"reddit":   {TokenEnv: "MY_TOKEN"},
	}}

	for name, want := range map[string]string{
		"linkedin": "inline",
		"reddit":   "from-token-env",
		"Twitter":  "from-default-env",
		"mastodon": "",
	} {
		if got := cfg.Platform(name, getenv).Token; got != want {
			t.Fatalf("%s token = %q, want %q", name, got, want)
		}
	}
	if got := cfg.Platform("slack", getenv).WebhookURL; got != "https://hooks.example/x" {
		t.Fatalf("slack webhook = %q", got)
	}
}

func TestStoreConfigOverride(t *testing.T) {
	t.Parallel()
	cfg := &Config{Store: StoreConfig{Driver: "sqlite", Path: "/var/lib/jobs.db", BusyTimeout: "2s"}}
	sc := cfg.StoreConfig("")
	if sc.Driver != "sqlite" || sc.Path != "/var/lib/jobs.db" || sc.BusyTimeout != 2*time.Second {
		t.Fatalf("store = %+v", sc)
	}
	if got := cfg.StoreConfig("/tmp/other.db").Path; got != "/tmp/other.db" {
		t.Fatalf("override path = %q", got)
	}
}

func TestExpandHome(t *testing.T) {
	t.Parallel()
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/x/y"); got != filepath.Join(home, "x", "y") {
		t.Fatalf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/abs"); got != "/abs" {
		t.Fatalf("ExpandHome = %q", got)
	}
}
