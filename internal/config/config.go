// Package config loads the flight info service configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"flightinfo/internal/flight"
)

// Environment overrides, applied after the file.
const (
	EnvListen      = "FLIGHTINFO_LISTEN"
	EnvUpstreamURL = "FLIGHTINFO_UPSTREAM_URL"
	EnvNATSURL     = "FLIGHTINFO_NATS_URL"
	EnvLogLevel    = "FLIGHTINFO_LOG_LEVEL"
)

type ServerConfig struct {
	Listen         string        `yaml:"listen"`          // :3000
	RequestTimeout time.Duration `yaml:"request_timeout"` // whole-request budget
}

type UpstreamConfig struct {
	BaseURL        string        `yaml:"base_url"` // https://www.flightaware.com
	Timeout        time.Duration `yaml:"timeout"`  // per page fetch
	UserAgent      string        `yaml:"user_agent"`
	AcceptLanguage string        `yaml:"accept_language"`
	// Per-host rate limiting & retries
	RatePerSecond float64       `yaml:"rate_per_second"` // 0 disables limiting
	Burst         int           `yaml:"burst"`
	MaxRetries    int           `yaml:"max_retries"`
	Backoff       time.Duration `yaml:"backoff"`     // initial backoff
	MaxBackoff    time.Duration `yaml:"max_backoff"` // cap
}

type LookupConfig struct {
	MaxConcurrency       int           `yaml:"max_concurrency"`
	RegistrationPrefixes []string      `yaml:"registration_prefixes"` // tried for bare 3-character tails
	Locales              []string      `yaml:"locales"`               // month tables, in order: en, pt
	OffshoreKeywords     []string      `yaml:"offshore_keywords"`
	MaxFragment          time.Duration `yaml:"max_fragment"`
	EmitTrailingEnRoute  bool          `yaml:"emit_trailing_en_route"`
}

type NATSConfig struct {
	URL           string `yaml:"url"` // empty disables publishing
	SubjectPrefix string `yaml:"subject_prefix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"` // console writer instead of JSON
}

type MetricsConfig struct {
	Enable bool `yaml:"enable"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Lookup   LookupConfig   `yaml:"lookup"`
	NATS     NATSConfig     `yaml:"nats"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Listen:         ":3000",
			RequestTimeout: 30 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:       "https://www.flightaware.com",
			Timeout:       15 * time.Second,
			RatePerSecond: 2,
			Burst:         2,
			MaxRetries:    2,
			Backoff:       500 * time.Millisecond,
			MaxBackoff:    5 * time.Second,
		},
		Lookup: LookupConfig{
			MaxConcurrency:       8,
			RegistrationPrefixes: []string{"PR", "PP", "PS"},
			Locales:              []string{"en", "pt"},
			OffshoreKeywords:     []string{"near", "plataforma"},
			MaxFragment:          time.Hour,
		},
		NATS: NATSConfig{
			SubjectPrefix: "flightinfo",
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enable: true,
		},
	}
}

// Load reads the YAML file at path over the defaults and applies environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	c := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv(EnvListen); v != "" {
		c.Server.Listen = v
	}
	if v := getenv(EnvUpstreamURL); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := getenv(EnvNATSURL); v != "" {
		c.NATS.URL = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch {
	case c.Server.Listen == "":
		return errors.New("server.listen is required")
	case c.Upstream.BaseURL == "":
		return errors.New("upstream.base_url is required")
	case c.Upstream.MaxRetries < 0:
		return errors.New("upstream.max_retries must not be negative")
	case c.Lookup.MaxConcurrency < 1:
		return errors.New("lookup.max_concurrency must be at least 1")
	case len(c.Lookup.Locales) == 0:
		return errors.New("lookup.locales must name at least one month table")
	}

	if _, err := c.Lookup.DateParser(); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// DateParser builds the month tables named in Locales, in order.
func (c LookupConfig) DateParser() (flight.DateParser, error) {
	var p flight.DateParser
	for _, name := range c.Locales {
		table, err := flight.LocaleByName(name)
		if err != nil {
			return flight.DateParser{}, fmt.Errorf("lookup.locales: %w", err)
		}
		p.Locales = append(p.Locales, table)
	}
	return p, nil
}

// Merger builds the offshore leg merger described by c.
func (c LookupConfig) Merger() (flight.Merger, error) {
	dates, err := c.DateParser()
	if err != nil {
		return flight.Merger{}, err
	}

	m := flight.NewMerger()
	m.Dates = dates
	m.EmitTrailing = c.EmitTrailingEnRoute
	if len(c.OffshoreKeywords) > 0 {
		m.IsAirport = flight.KeywordClassifier(c.OffshoreKeywords...)
	}
	if c.MaxFragment > 0 {
		m.MaxFragment = c.MaxFragment
	}
	return m, nil
}
