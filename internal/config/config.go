// Package config loads service configuration from a YAML file, a .env file and
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Event drivers.
const (
	DriverNone   = "none"
	DriverPubSub = "pubsub"
	DriverNATS   = "nats"
)

// ErrInvalid wraps every validation failure returned by Load.
var ErrInvalid = errors.New("invalid config")

var validate = validator.New()

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Events    EventsConfig    `yaml:"events"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            string        `yaml:"port" validate:"required,numeric"`
	Environment     string        `yaml:"environment" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`

	// RequireTLS rejects requests the load balancer forwarded over plain HTTP.
	RequireTLS bool `yaml:"require_tls"`
}

// ScoringConfig configures batch execution. PipelineDefault and MaxBatchRoutes
// may change at runtime through Watch.
type ScoringConfig struct {
	PipelineDefault     bool `yaml:"pipeline_default"`
	PipelineConcurrency int  `yaml:"pipeline_concurrency" validate:"min=1,max=64"`
	MaxBatchRoutes      int  `yaml:"max_batch_routes" validate:"min=1,max=1000"`
}

// RateLimitConfig configures per-IP limits on the compute endpoints.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"min=1"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"required_if=Enabled true"`
}

// EventsConfig configures outbound score events.
type EventsConfig struct {
	Driver     string       `yaml:"driver" validate:"oneof=none pubsub nats"`
	MaxRetries uint64       `yaml:"max_retries" validate:"max=10"`
	PubSub     PubSubConfig `yaml:"pubsub"`
	NATS       NATSConfig   `yaml:"nats"`
}

// PubSubConfig configures the Google Cloud Pub/Sub driver.
type PubSubConfig struct {
	ProjectID string `yaml:"project_id"`
	Topic     string `yaml:"topic"`
}

// NATSConfig configures the NATS driver.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Environment:     "development",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Scoring: ScoringConfig{
			PipelineDefault:     false,
			PipelineConcurrency: 4,
			MaxBatchRoutes:      10,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
		},
		Events: EventsConfig{
			Driver:     DriverNone,
			MaxRetries: 3,
			PubSub: PubSubConfig{
				Topic: "route-scores",
			},
			NATS: NATSConfig{
				URL:     "nats://localhost:4222",
				Subject: "routes.scores.computed",
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadDotEnv loads variables from the given .env files (".env" when none are
// given) without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and driver-specific requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	switch c.Events.Driver {
	case DriverPubSub:
		if c.Events.PubSub.ProjectID == "" || c.Events.PubSub.Topic == "" {
			return fmt.Errorf("%w: events.pubsub requires project_id and topic", ErrInvalid)
		}
	case DriverNATS:
		if c.Events.NATS.URL == "" || c.Events.NATS.Subject == "" {
			return fmt.Errorf("%w: events.nats requires url and subject", ErrInvalid)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("APP_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.Server.Environment = v
	}
	if v := os.Getenv("REQUIRE_TLS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Server.RequireTLS = b
		}
	}
	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Telemetry.Enabled = b
		}
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("SCORING_PIPELINE_DEFAULT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Scoring.PipelineDefault = b
		}
	}
	if v := os.Getenv("SCORING_PIPELINE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scoring.PipelineConcurrency = n
		}
	}
	if v := os.Getenv("SCORING_MAX_BATCH_ROUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scoring.MaxBatchRoutes = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("EVENTS_DRIVER"); v != "" {
		cfg.Events.Driver = v
	}
	if v := os.Getenv("EVENTS_PUBSUB_PROJECT_ID"); v != "" {
		cfg.Events.PubSub.ProjectID = v
	}
	if v := os.Getenv("EVENTS_PUBSUB_TOPIC"); v != "" {
		cfg.Events.PubSub.Topic = v
	}
	if v := os.Getenv("EVENTS_NATS_URL"); v != "" {
		cfg.Events.NATS.URL = v
	}
	if v := os.Getenv("EVENTS_NATS_SUBJECT"); v != "" {
		cfg.Events.NATS.Subject = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
