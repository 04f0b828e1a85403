package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.chatflow/config.toml.
type Config struct {
	DefaultProfile string   `toml:"default_profile"`
	Server         Server   `toml:"server"`
	Sync           Sync     `toml:"sync"`
	Realtime       Realtime `toml:"realtime"`
	UI             UI       `toml:"ui"`
}

// Server locates the chat server.
type Server struct {
	BaseURL        string   `toml:"base_url"`
	SocketURL      string   `toml:"socket_url"`
	RequestTimeout Duration `toml:"request_timeout"`
}

// Sync tunes the conversation engine.
type Sync struct {
	PollInterval Duration `toml:"poll_interval"`
}

// Realtime tunes reconnection of the realtime channel.
type Realtime struct {
	ReconnectAttempts int      `toml:"reconnect_attempts"`
	ReconnectDelay    Duration `toml:"reconnect_delay"`
	ReconnectDelayMax Duration `toml:"reconnect_delay_max"`
}

// UI holds presentation preferences.
type UI struct {
	Notifications *bool `toml:"notifications"`
}

// NotificationsEnabled reports the notification toggle, defaulting to on.
func (u UI) NotificationsEnabled() bool {
	return u.Notifications == nil || *u.Notifications
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills zero-valued fields with defaults.
func (c *Config) Normalize() {
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:3000"
	}
	if c.Server.SocketURL == "" {
		c.Server.SocketURL = "ws://localhost:3000/ws"
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = Duration(15 * time.Second)
	}
	if c.Sync.PollInterval <= 0 {
		c.Sync.PollInterval = Duration(3 * time.Second)
	}
	if c.Realtime.ReconnectAttempts <= 0 {
		c.Realtime.ReconnectAttempts = 5
	}
	if c.Realtime.ReconnectDelay <= 0 {
		c.Realtime.ReconnectDelay = Duration(time.Second)
	}
	if c.Realtime.ReconnectDelayMax <= 0 {
		c.Realtime.ReconnectDelayMax = Duration(5 * time.Second)
	}
	if c.Realtime.ReconnectDelayMax < c.Realtime.ReconnectDelay {
		c.Realtime.ReconnectDelayMax = c.Realtime.ReconnectDelay
	}
}

// Load reads config from the given path. Returns nil config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// LoadOrDefault reads config from path, falling back to Default when the file
// does not exist. Parse errors are still returned.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
