package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers          []string      `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaSubmissionsTopic string        `envconfig:"KAFKA_SUBMISSIONS_TOPIC" default:"condition-reports"`
	KafkaEventsTopic      string        `envconfig:"KAFKA_EVENTS_TOPIC" default:"condition-events"`
	KafkaGroupID          string        `envconfig:"KAFKA_GROUP_ID" default:"conditions-engine"`
	HTTPAddr              string        `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel              string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat             string        `envconfig:"LOG_FORMAT" default:"json"`
	ShutdownTimeout       time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	DBPath string `envconfig:"DB_PATH" default:"data/conditions.db"`

	// SitesFile is a JSON site catalog upserted into the store at startup.
	// Empty skips seeding.
	SitesFile string `envconfig:"SITES_FILE" default:"data/sites.json"`

	// Periodic job cadence.
	WeatherRefreshInterval time.Duration `envconfig:"WEATHER_REFRESH_INTERVAL" default:"15m"`
	SweepInterval          time.Duration `envconfig:"SWEEP_INTERVAL" default:"30m"`

	// Ingestion policy. MaxReportsPerDay guards against reporters farming
	// reputation; zero disables the quota.
	MaxReportsPerDay int `envconfig:"MAX_REPORTS_PER_DAY" default:"10"`

	// OpenWeatherMap One Call configuration. Weather refresh is disabled
	// when the key is unset; the engine then skips estimation cycles.
	WeatherAPIKey  string        `envconfig:"OPENWEATHERMAP_API_KEY"`
	WeatherLat     float64       `envconfig:"WEATHER_LAT" default:"40.7128"`
	WeatherLon     float64       `envconfig:"WEATHER_LON" default:"-74.0060"`
	WeatherTimeout time.Duration `envconfig:"WEATHER_TIMEOUT" default:"10s"`
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSubmissionsTopic == "" {
		return nil, errors.New("KAFKA_SUBMISSIONS_TOPIC is required")
	}
	if cfg.KafkaEventsTopic == "" {
		return nil, errors.New("KAFKA_EVENTS_TOPIC is required")
	}
	if cfg.WeatherRefreshInterval <= 0 || cfg.SweepInterval <= 0 {
		return nil, errors.New("refresh and sweep intervals must be positive")
	}
	if cfg.MaxReportsPerDay < 0 {
		return nil, errors.New("MAX_REPORTS_PER_DAY must not be negative")
	}
	return &cfg, nil
}

// WeatherEnabled reports whether the weather fetcher can run.
func (c *Config) WeatherEnabled() bool { return c.WeatherAPIKey != "" }
