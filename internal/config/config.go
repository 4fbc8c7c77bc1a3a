package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the review API service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseURL        string
	RedisURL           string
	NATSURL            string
	JWTSecret          string
	SamplingPercentage int
	StatsCacheTTL      time.Duration
	EventChannel       string
	SourceBaseURL      string
	SourceAPIKey       string
	SourcePageSize     int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("REVIEW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Review API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("sampling.percentage", 30)
	v.SetDefault("stats.cache_ttl", "5m")
	v.SetDefault("event.channel", "review")
	v.SetDefault("source.page_size", 100)

	ttlString := v.GetString("stats.cache_ttl")
	if ttlString == "" {
		ttlString = "5m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid stats cache ttl: %w", err)
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		JWTSecret:          v.GetString("jwt.secret"),
		SamplingPercentage: v.GetInt("sampling.percentage"),
		StatsCacheTTL:      ttl,
		EventChannel:       v.GetString("event.channel"),
		SourceBaseURL:      v.GetString("source.base_url"),
		SourceAPIKey:       v.GetString("source.api_key"),
		SourcePageSize:     v.GetInt("source.page_size"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.SamplingPercentage < 1 || cfg.SamplingPercentage > 100 {
		return Config{}, fmt.Errorf("sampling percentage must be between 1 and 100, got %d", cfg.SamplingPercentage)
	}

	if cfg.SourcePageSize <= 0 {
		cfg.SourcePageSize = 100
	}

	return cfg, nil
}
