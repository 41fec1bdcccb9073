package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds client configuration.
type Config struct {
	BaseURL           string
	ImageBaseURL      string
	Timeout           time.Duration
	RequestsPerSecond float64
	UserAgent         string
	StaleTime         time.Duration
	CacheSize         int
	ProbeParallelism  int
	OutputFile        string
	OutputFormat      string // text, csv, or json
	MetricsAddr       string
	Verbose           bool
}

// DefaultConfig returns defaults for a backend running on the local machine.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "http://localhost:8080",
		ImageBaseURL:      "",
		Timeout:           10 * time.Second,
		RequestsPerSecond: 0,
		UserAgent:         "bookshare-cli/1.0",
		StaleTime:         30 * time.Second,
		CacheSize:         128,
		ProbeParallelism:  8,
		OutputFile:        "",
		OutputFormat:      "text",
		MetricsAddr:       "",
		Verbose:           false,
	}
}

// ImageOrigin returns the origin image paths are resolved against.
func (c *Config) ImageOrigin() string {
	if c.ImageBaseURL != "" {
		return c.ImageBaseURL
	}
	return c.BaseURL
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if err := validateOrigin("base URL", c.BaseURL); err != nil {
		return err
	}
	if c.ImageBaseURL != "" {
		if err := validateOrigin("image base URL", c.ImageBaseURL); err != nil {
			return err
		}
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.StaleTime < 0 {
		return fmt.Errorf("stale time cannot be negative")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	if c.ProbeParallelism <= 0 {
		return fmt.Errorf("probe parallelism must be positive")
	}
	if c.OutputFormat != "text" && c.OutputFormat != "csv" && c.OutputFormat != "json" {
		return fmt.Errorf("output format must be text, csv, or json")
	}

	return nil
}

func validateOrigin(name, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https", name)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
