package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.ChannelName != "patient-form" {
		t.Errorf("expected channel patient-form, got %s", cfg.ChannelName)
	}
	if cfg.ChannelBackend != BackendMemory {
		t.Errorf("expected memory backend, got %s", cfg.ChannelBackend)
	}
	if cfg.IdleTimeout != 5*time.Second {
		t.Errorf("expected 5s idle timeout, got %s", cfg.IdleTimeout)
	}
	if cfg.PhoneRegion != "TH" {
		t.Errorf("expected TH, got %s", cfg.PhoneRegion)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("unexpected CORS origins %v", cfg.CORSOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("CHANNEL_BACKEND", "Kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("IDLE_TIMEOUT", "1500ms")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.UsesKafka() {
		t.Errorf("expected kafka backend, got %q", cfg.ChannelBackend)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.IdleTimeout != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %s", cfg.IdleTimeout)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("expected 2 origins, got %v", cfg.CORSOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	base := Config{Port: "8000", ChannelName: "patient-form", ChannelBackend: BackendMemory, IdleTimeout: time.Second}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"kafka without brokers", func(c *Config) { c.ChannelBackend = BackendKafka; c.KafkaTopic = "t" }, "KAFKA_BROKERS"},
		{"kafka without topic", func(c *Config) { c.ChannelBackend = BackendKafka; c.KafkaBrokers = []string{"k:9092"} }, "KAFKA_TOPIC"},
		{"unknown backend", func(c *Config) { c.ChannelBackend = "redis" }, "CHANNEL_BACKEND"},
		{"zero idle", func(c *Config) { c.IdleTimeout = 0 }, "IDLE_TIMEOUT"},
		{"blank channel", func(c *Config) { c.ChannelName = " " }, "CHANNEL_NAME"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_IsDev(t *testing.T) {
	c := &Config{Env: "development"}
	if !c.IsDev() {
		t.Error("expected IsDev() to return true for development")
	}
	c.Env = "production"
	if c.IsDev() {
		t.Error("expected IsDev() to return false for production")
	}
}
