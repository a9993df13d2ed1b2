package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Channel backends.
const (
	BackendMemory = "memory"
	BackendKafka  = "kafka"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	ChannelName    string        `mapstructure:"CHANNEL_NAME"`
	ChannelBackend string        `mapstructure:"CHANNEL_BACKEND"`
	KafkaBrokers   []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic     string        `mapstructure:"KAFKA_TOPIC"`
	KafkaGroupID   string        `mapstructure:"KAFKA_GROUP_ID"`
	AreasSource    string        `mapstructure:"AREAS_SOURCE"`
	IdleTimeout    time.Duration `mapstructure:"IDLE_TIMEOUT"`
	PhoneRegion    string        `mapstructure:"PHONE_REGION"`
	MessageLang    string        `mapstructure:"MESSAGE_LANG"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "CORS_ORIGINS",
	"CHANNEL_NAME", "CHANNEL_BACKEND",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_GROUP_ID",
	"AREAS_SOURCE", "IDLE_TIMEOUT", "PHONE_REGION", "MESSAGE_LANG",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT",
}

// Load reads configuration from the environment, with an optional .env file
// in the working directory.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("CHANNEL_NAME", "patient-form")
	v.SetDefault("CHANNEL_BACKEND", BackendMemory)
	v.SetDefault("KAFKA_TOPIC", "patient-form")
	v.SetDefault("AREAS_SOURCE", "./thailand-areas.json")
	v.SetDefault("IDLE_TIMEOUT", "5s")
	v.SetDefault("PHONE_REGION", "TH")
	v.SetDefault("MESSAGE_LANG", "en")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("BODY_LIMIT", "64K")

	// Bind explicitly so Unmarshal sees keys that only exist in the env.
	for _, k := range keys {
		v.BindEnv(k)
	}

	// The .env file is optional.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers)
	cfg.ChannelBackend = strings.ToLower(strings.TrimSpace(cfg.ChannelBackend))

	return cfg, nil
}

// splitList accepts both a real list and a single comma-separated entry.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// UsesKafka reports whether the channel is bridged through Kafka.
func (c *Config) UsesKafka() bool {
	return c.ChannelBackend == BackendKafka
}

// Validate checks that the configuration can run.
func (c *Config) Validate() error {
	var errs []error

	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if strings.TrimSpace(c.ChannelName) == "" {
		errs = append(errs, errors.New("CHANNEL_NAME is required"))
	}
	if c.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("IDLE_TIMEOUT must be positive, got %s", c.IdleTimeout))
	}

	switch c.ChannelBackend {
	case BackendMemory:
	case BackendKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required when CHANNEL_BACKEND is \"kafka\""))
		}
		if c.KafkaTopic == "" {
			errs = append(errs, errors.New("KAFKA_TOPIC is required when CHANNEL_BACKEND is \"kafka\""))
		}
	default:
		errs = append(errs, fmt.Errorf("CHANNEL_BACKEND must be %q or %q, got %q", BackendMemory, BackendKafka, c.ChannelBackend))
	}

	return errors.Join(errs...)
}
