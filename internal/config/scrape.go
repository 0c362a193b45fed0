package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ScrapeConfig controls the fetch loop. Delay is the fixed pause enforced
// before every remote request; MaxConsecutiveErrors aborts a run once that
// many fetches fail back to back without a single success in between.
type ScrapeConfig struct {
	Delay                time.Duration `mapstructure:"delay"`
	RequestTimeout       time.Duration `mapstructure:"requestTimeout"`
	MaxConsecutiveErrors int           `mapstructure:"maxConsecutiveErrors"`
}

func DefaultScrapeConfig() ScrapeConfig {
	return ScrapeConfig{
		Delay:                500 * time.Millisecond,
		RequestTimeout:       30 * time.Second,
		MaxConsecutiveErrors: 10,
	}
}

const (
	// MaxDelay bounds the live delay adjustment from the dashboard.
	MaxDelay = 10 * time.Second
)

// ScrapeSettings holds the current ScrapeConfig behind an atomic.Value so the
// running pipeline and the dashboard can read it without locking. The config
// file is watched and hot-reloaded; the dashboard can additionally override
// the delay at runtime.
type ScrapeSettings struct {
	current atomic.Value // holds ScrapeConfig
}

func NewScrapeSettings() (*ScrapeSettings, error) {
	v := viper.New()

	v.SetConfigName("scrape")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/nectar/config")
	v.AddConfigPath("/etc/nectar")
	v.AddConfigPath(".")

	v.SetEnvPrefix("NECTAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultScrapeConfig()
		v.SetDefault("scrape.delay", defaults.Delay)
		v.SetDefault("scrape.requestTimeout", defaults.RequestTimeout)
		v.SetDefault("scrape.maxConsecutiveErrors", defaults.MaxConsecutiveErrors)
	}

	var cfg ScrapeConfig
	if err := v.UnmarshalKey("scrape", &cfg); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if err := validateScrapeConfig(cfg); err != nil {
		return nil, err
	}

	settings := &ScrapeSettings{}
	settings.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ScrapeConfig
		if err := v.UnmarshalKey("scrape", &updated); err != nil {
			log.Printf("[scrape-config] reload failed: %v", err)
			return
		}
		if err := settings.Update(updated); err != nil {
			log.Printf("[scrape-config] invalid config ignored: %v", err)
			return
		}
		log.Printf("[scrape-config] reloaded from %s", e.Name)
	})

	return settings, nil
}

// NewStaticScrapeSettings returns settings that never touch the filesystem.
// Used by tests.
func NewStaticScrapeSettings(cfg ScrapeConfig) *ScrapeSettings {
	settings := &ScrapeSettings{}
	settings.current.Store(cfg.withDefaults())
	return settings
}

func (s *ScrapeSettings) Get() ScrapeConfig {
	return s.current.Load().(ScrapeConfig)
}

// Update validates and swaps in a new configuration. An active scrape run
// picks the new values up on its next iteration.
func (s *ScrapeSettings) Update(cfg ScrapeConfig) error {
	cfg = cfg.withDefaults()
	if err := validateScrapeConfig(cfg); err != nil {
		return err
	}
	s.current.Store(cfg)
	return nil
}

// SetDelay applies a live delay override from the dashboard.
func (s *ScrapeSettings) SetDelay(d time.Duration) error {
	if d < 0 {
		return errors.New("delay must be non-negative")
	}
	if d > MaxDelay {
		return errors.New("delay must be 10 seconds or less")
	}
	cfg := s.Get()
	cfg.Delay = d
	s.current.Store(cfg)
	return nil
}

func (c ScrapeConfig) withDefaults() ScrapeConfig {
	defaults := DefaultScrapeConfig()
	if c.Delay < 0 {
		c.Delay = defaults.Delay
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.MaxConsecutiveErrors <= 0 {
		c.MaxConsecutiveErrors = defaults.MaxConsecutiveErrors
	}
	return c
}

func validateScrapeConfig(cfg ScrapeConfig) error {
	if cfg.Delay > MaxDelay {
		return errors.New("scrape.delay cannot exceed 10s")
	}
	return nil
}
