package config

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "unsupported scheme",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "ftp://example.com"
			},
			wantErr: "http or https",
		},
		{
			name: "bad image origin",
			mutate: func(cfg *Config) {
				cfg.ImageBaseURL = "cdn.example.com"
			},
			wantErr: "image base URL",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "negative rate",
			mutate: func(cfg *Config) {
				cfg.RequestsPerSecond = -2
			},
			wantErr: "requests per second",
		},
		{
			name: "negative stale time",
			mutate: func(cfg *Config) {
				cfg.StaleTime = -time.Second
			},
			wantErr: "stale time",
		},
		{
			name: "zero cache size",
			mutate: func(cfg *Config) {
				cfg.CacheSize = 0
			},
			wantErr: "cache size",
		},
		{
			name: "zero probe parallelism",
			mutate: func(cfg *Config) {
				cfg.ProbeParallelism = 0
			},
			wantErr: "probe parallelism",
		},
		{
			name: "unknown format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
			},
			wantErr: "output format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestImageOriginFallsBackToBaseURL(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ImageOrigin(); got != cfg.BaseURL {
		t.Fatalf("image origin = %q, want %q", got, cfg.BaseURL)
	}

	cfg.ImageBaseURL = "https://cdn.example.com"
	if got := cfg.ImageOrigin(); got != "https://cdn.example.com" {
		t.Fatalf("image origin = %q, want cdn origin", got)
	}
}
