// Package config loads ShopLedger configuration from defaults, an
// optional YAML file, and SHOPLEDGER_* environment variables, in
// increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	DataDir string       `mapstructure:"data_dir"`
	Remote  RemoteConfig `mapstructure:"remote"`
	Sync    SyncConfig   `mapstructure:"sync"`
	Log     LogConfig    `mapstructure:"log"`
}

// RemoteConfig holds remote store credentials.
type RemoteConfig struct {
	URL         string        `mapstructure:"url"`
	APIKey      string        `mapstructure:"api_key"`
	AccessToken string        `mapstructure:"access_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SyncConfig tunes the engine and scheduler.
type SyncConfig struct {
	DebounceWindow time.Duration `mapstructure:"debounce_window"`
	SyncInterval   time.Duration `mapstructure:"sync_interval"`
	DrainInterval  time.Duration `mapstructure:"drain_interval"`
	SyncTimeout    time.Duration `mapstructure:"sync_timeout"`
}

// LogConfig controls log output and rotation.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // empty means stdout
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads configuration. With an explicit path the file must exist;
// otherwise a shopledger.yaml next to the data directory is used when
// present and silently skipped when not.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SHOPLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("shopledger")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultDataDir())
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())

	v.SetDefault("remote.url", "")
	v.SetDefault("remote.api_key", "")
	v.SetDefault("remote.access_token", "")
	v.SetDefault("remote.timeout", 15*time.Second)

	v.SetDefault("sync.debounce_window", 500*time.Millisecond)
	v.SetDefault("sync.sync_interval", 15*time.Minute)
	v.SetDefault("sync.drain_interval", time.Minute)
	v.SetDefault("sync.sync_timeout", 5*time.Minute)

	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 30)
}

// defaultDataDir is ~/.shopledger, falling back to the working
// directory when no home is resolvable.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shopledger"
	}
	return filepath.Join(home, ".shopledger")
}
