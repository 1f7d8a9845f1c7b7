package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	dvla50 "github.com/wagiedev/dvl-a50-sdk-go"
)

// defaultAddress is the DVL's factory static IP when no DHCP server answers.
const defaultAddress = "192.168.194.95"

type fileConfig struct {
	Address        string `toml:"address"`
	Port           int    `toml:"port"`
	DialTimeout    string `toml:"dial_timeout"`
	CommandTimeout string `toml:"command_timeout"`
	SweepInterval  string `toml:"sweep_interval"`
	MaxQueueDepth  int    `toml:"max_queue_depth"`
	LogLevel       string `toml:"log_level"`
	MetricsAddr    string `toml:"metrics_addr"`
}

// cliConfig is the resolved dvlctl configuration.
type cliConfig struct {
	Address        string
	Port           int
	DialTimeout    time.Duration
	CommandTimeout time.Duration
	SweepInterval  time.Duration
	MaxQueueDepth  int
	LogLevel       slog.Level
	MetricsAddr    string
}

func defaultConfig() cliConfig {
	return cliConfig{
		Address:        defaultAddress,
		Port:           dvla50.DefaultPort,
		DialTimeout:    dvla50.DefaultDialTimeout,
		CommandTimeout: dvla50.DefaultCommandTimeout,
		SweepInterval:  dvla50.DefaultSweepInterval,
		MaxQueueDepth:  dvla50.DefaultMaxQueueDepth,
		LogLevel:       slog.LevelInfo,
	}
}

// loadConfig overlays the keys present in the TOML file at path on the defaults.
func loadConfig(path string) (cliConfig, error) {
	cfg := defaultConfig()

	var raw fileConfig

	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return cliConfig{}, fmt.Errorf("load dvlctl config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return cliConfig{}, fmt.Errorf("load dvlctl config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("address") {
		if addr := strings.TrimSpace(raw.Address); addr != "" {
			cfg.Address = addr
		}
	}

	if meta.IsDefined("port") {
		if raw.Port <= 0 || raw.Port > 65535 {
			return cliConfig{}, fmt.Errorf("invalid port: %d", raw.Port)
		}

		cfg.Port = raw.Port
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"dial_timeout", raw.DialTimeout, &cfg.DialTimeout},
		{"command_timeout", raw.CommandTimeout, &cfg.CommandTimeout},
		{"sweep_interval", raw.SweepInterval, &cfg.SweepInterval},
	}

	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}

		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return cliConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}

		if v <= 0 {
			return cliConfig{}, fmt.Errorf("parse %s: must be positive", d.key)
		}

		*d.dst = v
	}

	if meta.IsDefined("max_queue_depth") {
		cfg.MaxQueueDepth = raw.MaxQueueDepth
	}

	if meta.IsDefined("log_level") {
		level, err := parseLevel(raw.LogLevel)
		if err != nil {
			return cliConfig{}, err
		}

		cfg.LogLevel = level
	}

	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("parse log_level: %w", err)
	}

	return level, nil
}

// driverOptions maps the configuration onto driver options.
func (c cliConfig) driverOptions(log *slog.Logger) []dvla50.Option {
	return []dvla50.Option{
		dvla50.WithLogger(log),
		dvla50.WithAddress(c.Address),
		dvla50.WithPort(c.Port),
		dvla50.WithDialTimeout(c.DialTimeout),
		dvla50.WithCommandTimeout(c.CommandTimeout),
		dvla50.WithSweepInterval(c.SweepInterval),
		dvla50.WithMaxQueueDepth(c.MaxQueueDepth),
	}
}
