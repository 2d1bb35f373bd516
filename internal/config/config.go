package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// DataDir holds the sqlite database.
	DataDir string `yaml:"data_dir"`

	// JWTSecret signs session tokens. Empty falls back to the JWT_SECRET env
	// var, or a generated one-boot secret.
	JWTSecret string `yaml:"jwt_secret,omitempty"`

	// RoomIdleDays is how long a room may go without a write before the
	// cleanup job removes it. 0 disables pruning.
	RoomIdleDays int `yaml:"room_idle_days"`

	// CleanupCron schedules the idle-room pruning job.
	CleanupCron string `yaml:"cleanup_cron"`

	// PresenceTTLSeconds is how long after the last heartbeat a member still
	// counts as online.
	PresenceTTLSeconds int `yaml:"presence_ttl_seconds"`
}

func DefaultConfig() *Config {
	return &Config{
		Listen:             ":2026",
		DataDir:            "./data",
		RoomIdleDays:       90,
		CleanupCron:        "0 3 * * *",
		PresenceTTLSeconds: 60,
	}
}

// Normalize fills missing/zero values so partially-filled configs behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = ":2026"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.RoomIdleDays < 0 {
		c.RoomIdleDays = 0
	}
	if c.CleanupCron == "" {
		c.CleanupCron = "0 3 * * *"
	}
	if c.PresenceTTLSeconds <= 0 {
		c.PresenceTTLSeconds = 60
	}
}

// Load reads YAML config from path. A missing file is created with defaults
// on first run.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
