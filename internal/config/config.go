package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Scheduler   SchedulerConfig
	Telemetry   TelemetryConfig
	API         APIConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// RabbitMQConfig holds RabbitMQ connection and exchange settings
type RabbitMQConfig struct {
	URL              string
	EventsExchange   string
	NotifyRoutingKey string
}

// SchedulerConfig holds poll scheduling settings
type SchedulerConfig struct {
	TickIntervalSeconds int
	UserConcurrency     int
}

// TelemetryConfig holds upstream vehicle API settings
type TelemetryConfig struct {
	BaseURL               string
	RequestTimeoutSeconds int
}

// APIConfig holds query API settings
type APIConfig struct {
	Port  int
	Token string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "vehicle-telemetry-worker"),
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		RabbitMQ: RabbitMQConfig{
			URL:              getEnv("RABBITMQ_URL", ""),
			EventsExchange:   getEnv("RABBITMQ_EVENTS_EXCHANGE", "vehicle-telemetry.events.exchange"),
			NotifyRoutingKey: getEnv("RABBITMQ_NOTIFY_ROUTING_KEY", "user.credential.invalidated"),
		},
		Scheduler: SchedulerConfig{
			TickIntervalSeconds: getEnvAsInt("SCHEDULER_TICK_SECONDS", 5),
			UserConcurrency:     getEnvAsInt("SCHEDULER_USER_CONCURRENCY", 4),
		},
		Telemetry: TelemetryConfig{
			BaseURL:               getEnv("TELEMETRY_API_URL", "https://owner-api.teslamotors.com"),
			RequestTimeoutSeconds: getEnvAsInt("TELEMETRY_REQUEST_TIMEOUT_SECONDS", 15),
		},
		API: APIConfig{
			Port:  getEnvAsInt("API_PORT", 8080),
			Token: getEnv("API_TOKEN", ""),
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
