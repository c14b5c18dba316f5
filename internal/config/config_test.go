package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "condition-reports", cfg.KafkaSubmissionsTopic)
	assert.Equal(t, "condition-events", cfg.KafkaEventsTopic)
	assert.Equal(t, "conditions-engine", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 15*time.Minute, cfg.WeatherRefreshInterval)
	assert.Equal(t, 30*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 10, cfg.MaxReportsPerDay)
	assert.False(t, cfg.WeatherEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka1:9092,kafka2:9092")
	t.Setenv("KAFKA_GROUP_ID", "engine-test")
	t.Setenv("SWEEP_INTERVAL", "5m")
	t.Setenv("OPENWEATHERMAP_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"kafka1:9092", "kafka2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "engine-test", cfg.KafkaGroupID)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.True(t, cfg.WeatherEnabled())
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "empty submissions topic", key: "KAFKA_SUBMISSIONS_TOPIC", value: ""},
		{name: "empty events topic", key: "KAFKA_EVENTS_TOPIC", value: ""},
		{name: "zero sweep interval", key: "SWEEP_INTERVAL", value: "0s"},
		{name: "negative quota", key: "MAX_REPORTS_PER_DAY", value: "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
