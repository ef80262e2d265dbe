package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.wppcrm/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`

	Inbox   Inbox   `toml:"inbox"`
	Gateway Gateway `toml:"gateway"`
	Outbox  Outbox  `toml:"outbox"`
	Metrics Metrics `toml:"metrics"`
}

// Inbox tunes the TUI's history paging and optimistic send matching.
type Inbox struct {
	InitialPageSize int      `toml:"initial_page_size"`
	MorePageSize    int      `toml:"more_page_size"`
	MatchWindow     Duration `toml:"match_window"`
}

// Gateway tunes the WhatsApp connection.
type Gateway struct {
	QRTimeout Duration `toml:"qr_timeout"`
}

// Outbox tunes per-chat send rate limiting. Rate is in messages per second.
type Outbox struct {
	Rate  float64  `toml:"rate"`
	Burst int      `toml:"burst"`
	Idle  Duration `toml:"idle"`
}

// Metrics configures the Prometheus listener. An empty Listen disables it.
type Metrics struct {
	Listen string `toml:"listen"`
}

// Duration is a time.Duration written as a string such as "60s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultSession: "main",
		Inbox: Inbox{
			InitialPageSize: 200,
			MorePageSize:    500,
			MatchWindow:     Duration{60 * time.Second},
		},
		Gateway: Gateway{QRTimeout: Duration{60 * time.Second}},
		Outbox: Outbox{
			Rate:  1,
			Burst: 5,
			Idle:  Duration{10 * time.Minute},
		},
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
// Keys absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.DefaultSession = ""
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when the file does not exist.
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
