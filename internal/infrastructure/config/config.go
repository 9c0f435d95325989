package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	App struct {
		// "live" polls the scraping feed; "display" seeds demo data and
		// runs the price simulator instead.
		Mode     string `toml:"mode"`
		LogLevel string `toml:"log_level"`
		Pretty   bool   `toml:"pretty_log"`
	} `toml:"app"`

	Server struct {
		Addr string `toml:"addr"`
	} `toml:"server"`

	DB struct {
		Driver string `toml:"driver"` // "sqlite" or "postgres"
		Path   string `toml:"path"`   // sqlite file
		DSN    string `toml:"dsn"`    // postgres dsn
	} `toml:"db"`

	Redis struct {
		Enabled    bool   `toml:"enabled"`
		Addr       string `toml:"addr"`
		Prefix     string `toml:"prefix"`
		TTLSeconds int    `toml:"ttl_seconds"`
	} `toml:"redis"`

	Ingest struct {
		IntervalMs int    `toml:"interval_ms"`
		SourceURL  string `toml:"source_url"`
	} `toml:"ingest"`

	Session struct {
		TTLHours    int     `toml:"ttl_hours"`
		SeedBalance float64 `toml:"seed_balance"`
	} `toml:"session"`

	Simulator struct {
		IntervalMs int `toml:"interval_ms"`
		SeedCount  int `toml:"seed_count"`
	} `toml:"simulator"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Mode == "" {
		cfg.App.Mode = "live"
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = "sqlite"
	}
	if cfg.DB.Path == "" {
		cfg.DB.Path = "data/kangaroo.db"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "kangaroo"
	}
	if cfg.Redis.TTLSeconds <= 0 {
		cfg.Redis.TTLSeconds = 60
	}
	if cfg.Ingest.IntervalMs <= 0 {
		cfg.Ingest.IntervalMs = 1000
	}
	if cfg.Session.TTLHours <= 0 {
		cfg.Session.TTLHours = 24
	}
	if cfg.Session.SeedBalance <= 0 {
		cfg.Session.SeedBalance = 100000
	}
	if cfg.Simulator.IntervalMs <= 0 {
		cfg.Simulator.IntervalMs = 2000
	}
	if cfg.Simulator.SeedCount <= 0 {
		cfg.Simulator.SeedCount = 20
	}
}

func validate(cfg *Config) error {
	switch cfg.App.Mode {
	case "live", "display":
	default:
		return fmt.Errorf("app.mode must be live or display, got %q", cfg.App.Mode)
	}

	switch cfg.DB.Driver {
	case "sqlite":
	case "postgres":
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return errors.New("db.dsn empty but driver is postgres")
		}
	default:
		return fmt.Errorf("db.driver must be sqlite or postgres, got %q", cfg.DB.Driver)
	}

	if cfg.App.Mode == "live" && strings.TrimSpace(cfg.Ingest.SourceURL) == "" {
		return errors.New("ingest.source_url empty but app.mode is live")
	}
	if cfg.Redis.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("redis.addr empty but enabled")
	}
	return nil
}

func (c *Config) IngestInterval() time.Duration {
	return time.Duration(c.Ingest.IntervalMs) * time.Millisecond
}

func (c *Config) SimulatorInterval() time.Duration {
	return time.Duration(c.Simulator.IntervalMs) * time.Millisecond
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLHours) * time.Hour
}

func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}
