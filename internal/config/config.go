package config

import (
	"os"
	"strings"
)

type Config struct {
	Port             string
	Environment      string
	LogLevel         string
	AllowedOrigins   []string
	AllowCredentials bool

	MongoURI      string
	MongoDatabase string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	KafkaBrokers []string
	KafkaGroupID string

	JWTSecret   string
	JWTExpiryHr int
}

func LoadConfig() *Config {
	allowedOrigins := []string{"*"}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		allowedOrigins = splitAndTrim(origins)
	}

	kafkaBrokers := []string{"localhost:9092"}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		kafkaBrokers = splitAndTrim(brokers)
	}

	return &Config{
		Port:             getEnv("PORT", "8082"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: getEnv("ALLOW_CREDENTIALS", "false") == "true",
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:    getEnv("MONGO_DATABASE", "livechat"),
		RedisHost:        getEnv("REDIS_HOST", "localhost"),
		RedisPort:        getEnv("REDIS_PORT", "6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:     kafkaBrokers,
		KafkaGroupID:     getEnv("KAFKA_GROUP_ID", "livechat-ws-group"),
		JWTSecret:        getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiryHr:      168, // 7 days, matches the dashboard session length
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

// GetCORSOrigins returns CORS origins as a comma-separated string.
func (c *Config) GetCORSOrigins() string {
	if c.IsProduction() && len(c.AllowedOrigins) > 0 && c.AllowedOrigins[0] != "*" {
		return strings.Join(c.AllowedOrigins, ",")
	}
	return "*"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
