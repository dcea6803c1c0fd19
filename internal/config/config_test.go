package config_test

import (
	"testing"

	"student-fee-service/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("ENV", "unit-test")

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, "unit-test", cfg.Env)
		assert.Equal(t, "5000", cfg.Server.Port)
		assert.Equal(t, 3, cfg.Database.ConnectRetries)
		assert.Equal(t, 5, cfg.Database.ConnectRetryDelay)
		assert.Equal(t, "none", cfg.Events.Driver)
		assert.False(t, cfg.Auth.Enabled)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("ENV", "unit-test")
		t.Setenv("PORT", "9090")
		t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/fees?sslmode=disable")

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, "9090", cfg.Server.Port)
		assert.Equal(t, "postgres://u:p@db:5432/fees?sslmode=disable", cfg.Database.URL)
	})

	t.Run("LogOverrides", func(t *testing.T) {
		t.Setenv("ENV", "unit-test")
		t.Setenv("LOG_LEVEL", "warn")
		t.Setenv("LOG_FORMAT", "json")

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, "warn", cfg.Log.Level)
		assert.Equal(t, "json", cfg.Log.Format)
	})
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			Database: config.DatabaseConfig{URL: "postgres://localhost/fees"},
			Events:   config.EventsConfig{Driver: "none"},
		}
	}

	t.Run("Valid", func(t *testing.T) {
		cfg := valid()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("MissingDatabaseURL", func(t *testing.T) {
		cfg := valid()
		cfg.Database.URL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("NATSWithoutURL", func(t *testing.T) {
		cfg := valid()
		cfg.Events.Driver = "nats"
		assert.Error(t, cfg.Validate())
	})

	t.Run("KafkaWithoutBrokers", func(t *testing.T) {
		cfg := valid()
		cfg.Events.Driver = "kafka"
		assert.Error(t, cfg.Validate())
	})

	t.Run("UnknownDriver", func(t *testing.T) {
		cfg := valid()
		cfg.Events.Driver = "rabbit"
		assert.Error(t, cfg.Validate())
	})

	t.Run("AuthWithoutSecret", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.Enabled = true
		cfg.Auth.AdminPasswordHash = "$2a$10$hash"
		assert.Error(t, cfg.Validate())
	})
}
