package config

import (
	"bytes"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

const (
	// DirName is the per-user state directory under $HOME.
	DirName         = ".socialia"
	defaultConfig   = "config.yaml"
	defaultStore    = "scheduled.json"
	defaultLogLevel = "info"
)

// Dir returns ~/.socialia.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return DirName
	}
	return filepath.Join(home, DirName)
}

// DefaultPath is ~/.socialia/config.yaml.
func DefaultPath() string { return filepath.Join(Dir(), defaultConfig) }

// Default is the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: defaultLogLevel, Console: true},
		Store:   StoreConfig{Driver: "file", Path: filepath.Join(Dir(), defaultStore)},
	}
}

type Manager struct {
	path string

	mu  sync.RWMutex
	cfg *Config
}

// NewManager reads from path, or DefaultPath when path is empty.
func NewManager(path string) *Manager {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	return &Manager{path: ExpandHome(path)}
}

func (m *Manager) Path() string { return m.path }

// Parse decodes the file strictly; unknown keys are errors. The format follows
// the extension: .yaml/.yml, .toml, anything else is JSON.
func (m *Manager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	jb, format, err := coerceToJSONBytes(m.path, b)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", m.path)
	}

	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "config %s (%s)", m.path, format)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, errors.Newf("config %s: trailing data", m.path)
		}
		return nil, errors.Wrapf(err, "config %s", m.path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", m.path)
	}
	return cfg, nil
}

// Load parses and commits the file. A missing file yields Default().
func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return cfg, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
