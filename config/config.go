// Package config loads the engine configuration: yaml file first,
// HEIMDALL_-prefixed environment variables on top, defaults under
// everything. Without an explicit path a missing config file is not
// an error; the defaults describe a complete single-process engine.
// An explicit path that cannot be read is an error.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	LogLevel       string  `mapstructure:"log_level"`
	PriceScale     int32   `mapstructure:"price_scale"`
	ReferenceIndex float64 `mapstructure:"reference_index"`
	// SessionOpen is the session-open wall clock ("09:00") anchoring
	// the circuit breaker's halt-duration table.
	SessionOpen string `mapstructure:"session_open"`

	// Bands preinstalls per-symbol price bands before any command runs.
	Bands []BandConfig `mapstructure:"bands"`

	Journal JournalConfig `mapstructure:"journal"`
	Feed    FeedConfig    `mapstructure:"feed"`
}

// BandConfig keeps the reference price and percent as decimal strings;
// they are parsed where the engine installs them.
type BandConfig struct {
	Symbol    string `mapstructure:"symbol"`
	Reference string `mapstructure:"reference"`
	Percent   string `mapstructure:"percent"`
}

// JournalConfig enables the durable trade journal when Dir is set.
type JournalConfig struct {
	Dir string `mapstructure:"dir"`
}

// FeedConfig enables the Kafka trade feed when brokers are set. The
// feed requires the journal: it drains journal records, never the
// in-memory log.
type FeedConfig struct {
	Brokers  []string      `mapstructure:"brokers"`
	Topic    string        `mapstructure:"topic"`
	Interval time.Duration `mapstructure:"interval"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("heimdall")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("HEIMDALL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("log_level", "info")
	v.SetDefault("price_scale", 2)
	v.SetDefault("reference_index", 17500.0)
	v.SetDefault("session_open", "09:00")
	v.SetDefault("feed.topic", "trades")
	v.SetDefault("feed.interval", 250*time.Millisecond)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// OpenClock parses SessionOpen into hour and minute.
func (c *Config) OpenClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", c.SessionOpen)
	if err != nil {
		return 0, 0, fmt.Errorf("session_open %q: %w", c.SessionOpen, err)
	}
	return t.Hour(), t.Minute(), nil
}
