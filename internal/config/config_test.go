package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:                "8080",
		Env:                 "development",
		DBDriver:            "postgres",
		DBPassword:          "secure-password",
		DBSSLMode:           "require",
		IdentitySecret:      "secure-secret-at-least-32-chars-long",
		EventBackend:        "inline",
		BulkDeleteBatchSize: 500,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"valid development", func(*Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"missing secret", func(c *Config) { c.IdentitySecret = "" }, true},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"sqlite in development", func(c *Config) { c.DBDriver = "sqlite" }, false},
		{"unknown event backend", func(c *Config) { c.EventBackend = "nats" }, true},
		{"kafka without brokers", func(c *Config) { c.EventBackend = "kafka" }, true},
		{"kafka with brokers", func(c *Config) { c.EventBackend = "kafka"; c.KafkaBrokers = "k1:9092, k2:9092" }, false},
		{"batch too large", func(c *Config) { c.BulkDeleteBatchSize = 501 }, true},
		{"batch zero", func(c *Config) { c.BulkDeleteBatchSize = 0 }, true},
		{"production ok", func(c *Config) { c.Env = "production" }, false},
		{"production default secret", func(c *Config) { c.Env = "production"; c.IdentitySecret = defaultIdentitySecret }, true},
		{"production short secret", func(c *Config) { c.Env = "prod"; c.IdentitySecret = "short" }, true},
		{"production weak db password", func(c *Config) { c.Env = "production"; c.DBPassword = "password" }, true},
		{"production ssl disabled", func(c *Config) { c.Env = "production"; c.DBSSLMode = "disable" }, true},
		{"production sqlite", func(c *Config) { c.Env = "production"; c.DBDriver = "sqlite" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_KafkaBrokerList(t *testing.T) {
	c := &Config{KafkaBrokers: " a:9092,,b:9092 "}
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.KafkaBrokerList())
}

func TestLoadConfig_Normalization(t *testing.T) {
	defer viper.Reset()

	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("EVENT_BACKEND", " Redis ")
	t.Setenv("DB_DRIVER", "SQLITE")
	t.Setenv("LOG_LEVEL", " DEBUG ")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "redis", c.EventBackend)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, MaxBulkDeleteBatchSize, c.BulkDeleteBatchSize)
}
