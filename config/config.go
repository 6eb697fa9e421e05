package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

const (
	// StatusModeCompat maps every domain failure to 500.
	StatusModeCompat = "compat"
	// StatusModeDetailed distinguishes not-found (404), timeouts (504) and other upstream failures (502).
	StatusModeDetailed = "detailed"
)

type Config struct {
	Environment string `env:"ENVIRONMENT,default=development"`
	ServerPort  string `env:"PORT,default=5000"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	CountriesURL   string `env:"API_COUNTRIES,default=https://date.nager.at/api/v3/AvailableCountries"`
	CountryInfoURL string `env:"API_COUNTRY_INFO,default=https://date.nager.at/api/v3/CountryInfo/"`
	PopulationURL  string `env:"API_POPULATION,default=https://countriesnow.space/api/v0.1/countries/population"`
	FlagsURL       string `env:"API_FLAG,default=https://countriesnow.space/api/v0.1/countries/flag/images"`

	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT,default=10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`

	// Comma separated.
	AllowedOrigins  string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:3000"`
	ErrorStatusMode string `env:"ERROR_STATUS_MODE,default=compat"`
}

// Load reads the configuration from the environment. The result is meant to be
// built once at startup and shared read-only afterwards.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the provider URLs, timeouts and status mode.
func (c *Config) Validate() error {
	providers := []struct {
		key, value string
	}{
		{"API_COUNTRIES", c.CountriesURL},
		{"API_COUNTRY_INFO", c.CountryInfoURL},
		{"API_POPULATION", c.PopulationURL},
		{"API_FLAG", c.FlagsURL},
	}
	for _, p := range providers {
		u, err := url.ParseRequestURI(p.value)
		if err != nil || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", p.key, p.value)
		}
	}

	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.UpstreamTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}

	if len(c.Origins()) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS must list at least one origin")
	}

	switch c.ErrorStatusMode {
	case StatusModeCompat, StatusModeDetailed:
	default:
		return fmt.Errorf("ERROR_STATUS_MODE must be %q or %q, got %q",
			StatusModeCompat, StatusModeDetailed, c.ErrorStatusMode)
	}
	return nil
}

// Origins returns the CORS allow-list.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
