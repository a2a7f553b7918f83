package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.mojibridge/config.toml.
type Config struct {
	Session string `toml:"session"`

	// StorePath is the platform message database, opened read-only.
	StorePath string `toml:"store_path"`

	// Chat identifies the watched conversation: a canonical chat id,
	// a partial group name, or a bare participant handle.
	Chat string `toml:"chat"`

	// BrainURL is the base URL of the downstream decision service.
	BrainURL string `toml:"brain_url"`

	// ListenAddr is the bind address of the control surface.
	ListenAddr string `toml:"listen_addr"`

	PollIntervalMS int   `toml:"poll_interval_ms"`
	RewindRows     int64 `toml:"rewind_rows"`

	RetryMaxAttempts int `toml:"retry_max_attempts"`
	RetryWindowMS    int `toml:"retry_window_ms"`
	ProcessedCap     int `toml:"processed_cap"`
}

// Default returns a config with all defaults filled in. The watched chat has
// no sensible default and must come from the file or environment.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Session:          "main",
		StorePath:        filepath.Join(home, "Library", "Messages", "chat.db"),
		BrainURL:         "http://localhost:3001",
		ListenAddr:       "127.0.0.1:3000",
		PollIntervalMS:   2000,
		RewindRows:       0,
		RetryMaxAttempts: 10,
		RetryWindowMS:    20000,
		ProcessedCap:     1000,
	}
}

// Load reads config from the given path on top of defaults. A missing file is
// not an error; the defaults (plus env overrides) stand on their own.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
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

// ApplyEnv overrides config fields from the environment. The bridge was
// originally driven entirely by env vars, so these keep working.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MOJI_STORE_PATH"); v != "" {
		c.StorePath = v
	}
	if v := os.Getenv("MOJI_TARGET_CHAT"); v != "" {
		c.Chat = v
	}
	if v := os.Getenv("MOJI_BRAIN_URL"); v != "" {
		c.BrainURL = v
	}
	if v := os.Getenv("MOJI_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.Chat == "" {
		return fmt.Errorf("no watched chat configured: set chat in config.toml or MOJI_TARGET_CHAT")
	}
	if c.StorePath == "" {
		return fmt.Errorf("store_path is required")
	}
	if c.BrainURL == "" {
		return fmt.Errorf("brain_url is required")
	}
	return nil
}

// PollInterval returns the poll cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	if c.PollIntervalMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// RetryWindow returns the retry ledger time bound as a duration.
func (c *Config) RetryWindow() time.Duration {
	if c.RetryWindowMS <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.RetryWindowMS) * time.Millisecond
}
