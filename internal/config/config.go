// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultIdentitySecret = "your-secret-key-change-in-production"

// MaxBulkDeleteBatchSize bounds a single delete batch to the backend's atomic
// write limit.
const MaxBulkDeleteBatchSize = 500

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`

	DBDriver   string `mapstructure:"DB_DRIVER"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`

	RedisURL               string `mapstructure:"REDIS_URL"`
	ProfileCacheTTLSeconds int    `mapstructure:"PROFILE_CACHE_TTL_SECONDS"`

	IdentitySecret   string `mapstructure:"IDENTITY_SECRET"`
	IdentityIssuer   string `mapstructure:"IDENTITY_ISSUER"`
	IdentityAudience string `mapstructure:"IDENTITY_AUDIENCE"`

	EventBackend string `mapstructure:"EVENT_BACKEND"`
	EventStream  string `mapstructure:"EVENT_STREAM"`
	EventGroup   string `mapstructure:"EVENT_GROUP"`
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`

	BulkDeleteBatchSize int `mapstructure:"BULK_DELETE_BATCH_SIZE"`

	TracingEnabled     bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter    string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint       string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSampleRatio float64 `mapstructure:"TRACING_SAMPLE_RATIO"`

	DevBootstrapRoot bool   `mapstructure:"DEV_BOOTSTRAP_ROOT"`
	DevRootID        string `mapstructure:"DEV_ROOT_ID"`
	DevRootName      string `mapstructure:"DEV_ROOT_NAME"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "chatroom")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("SQLITE_PATH", "chatroom.db")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("PROFILE_CACHE_TTL_SECONDS", 30)
	viper.SetDefault("IDENTITY_SECRET", defaultIdentitySecret)
	viper.SetDefault("IDENTITY_ISSUER", "chatroom-identity")
	viper.SetDefault("IDENTITY_AUDIENCE", "chatroom-client")
	viper.SetDefault("EVENT_BACKEND", "inline")
	viper.SetDefault("EVENT_STREAM", "chatroom:messages:created")
	viper.SetDefault("EVENT_GROUP", "enforcement")
	viper.SetDefault("KAFKA_BROKERS", "")
	viper.SetDefault("KAFKA_TOPIC", "chatroom.messages.created")
	viper.SetDefault("BULK_DELETE_BATCH_SIZE", MaxBulkDeleteBatchSize)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLE_RATIO", 1.0)
	viper.SetDefault("DEV_BOOTSTRAP_ROOT", false)
	viper.SetDefault("DEV_ROOT_ID", "root")
	viper.SetDefault("DEV_ROOT_NAME", "GrandWizard")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	config.normalize()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.EventBackend = strings.ToLower(strings.TrimSpace(c.EventBackend))
	c.TracingExporter = strings.ToLower(strings.TrimSpace(c.TracingExporter))
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// KafkaBrokerList splits KAFKA_BROKERS on commas.
func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.IdentitySecret == "" {
		return errors.New("IDENTITY_SECRET is required")
	}

	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}

	switch c.EventBackend {
	case "inline", "redis":
	case "kafka":
		if len(c.KafkaBrokerList()) == 0 {
			return errors.New("KAFKA_BROKERS is required when EVENT_BACKEND is kafka")
		}
	default:
		return fmt.Errorf("EVENT_BACKEND must be inline, redis or kafka, got %q", c.EventBackend)
	}

	if c.BulkDeleteBatchSize < 1 || c.BulkDeleteBatchSize > MaxBulkDeleteBatchSize {
		return fmt.Errorf("BULK_DELETE_BATCH_SIZE must be between 1 and %d", MaxBulkDeleteBatchSize)
	}

	if c.IsProduction() {
		if c.IdentitySecret == defaultIdentitySecret {
			return errors.New("IDENTITY_SECRET must be changed from the default value in production")
		}
		if len(c.IdentitySecret) < 32 {
			return errors.New("IDENTITY_SECRET must be at least 32 characters in production")
		}
		if c.DBDriver == "sqlite" {
			return errors.New("DB_DRIVER sqlite is not supported in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must not be 'disable' in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.IdentitySecret) < 32 {
		log.Println("WARNING: IDENTITY_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
