package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	CounterBackendMongo = "mongo"
	CounterBackendRedis = "redis"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Code generation
	CounterBackend string

	// Admin auth
	JwtSecret         string
	JwtTTL            time.Duration
	AdminEmail        string
	AdminPasswordHash string

	// Server
	ApiPort        string
	ServiceApiPort string
	CorsOrigins    []string

	// Email
	SmtpHost        string
	SmtpPort        int
	SmtpUsername    string
	SmtpPassword    string
	SmtpFromAddress string
	MockServices    bool
	LogEmailsPath   string

	// Media host (S3 compatible)
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	AwsS3Endpoint      string
	MediaBaseURL       string
	MediaRootFolder    string
	ImageMaxDimension  int
	ImageMaxSizeMB     int

	// Events
	RabbitMQURL    string
	EventsExchange string

	// Catalog
	AppName       string
	FeaturedLimit int

	// Rate Limiting Defaults
	RateLimitReadBucketSize int
	RateLimitReadRefillRate int // tokens per second
	RateLimitMailBucketSize int
	RateLimitMailRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		RunMode: runMode,
	}

	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	getInt := func(key, defaultValue string) (int, error) {
		v, err := strconv.Atoi(getEnv(key, defaultValue))
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return v, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "cimars")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.CounterBackend = strings.ToLower(getEnv("COUNTER_BACKEND", CounterBackendMongo))
	cfg.AdminEmail = getEnv("ADMIN_EMAIL", "")
	cfg.AdminPasswordHash = getEnv("ADMIN_PASSWORD_HASH", "")
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.SmtpHost = getEnv("SMTP_HOST", "")
	cfg.SmtpUsername = getEnv("SMTP_USERNAME", "")
	cfg.SmtpPassword = getEnv("SMTP_PASSWORD", "")
	cfg.SmtpFromAddress = getEnv("SMTP_FROM_ADDRESS", "noreply@cimars.example.com")
	cfg.MockServices = getEnv("MOCK_SERVICES", "") == "true"
	cfg.LogEmailsPath = getEnv("LOG_EMAILS", "")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "us-east-1")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.AwsS3Endpoint = getEnv("AWS_S3_ENDPOINT", "")
	cfg.MediaBaseURL = strings.TrimRight(getEnv("MEDIA_BASE_URL", ""), "/")
	cfg.MediaRootFolder = strings.Trim(getEnv("MEDIA_ROOT_FOLDER", "cima-rs"), "/")
	cfg.RabbitMQURL = getEnv("RABBITMQ_URL", "")
	cfg.EventsExchange = getEnv("EVENTS_EXCHANGE", "catalog.events")
	cfg.AppName = getEnv("APP_NAME", "CIMA Real Estate")

	for _, o := range strings.Split(getEnv("CORS_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CorsOrigins = append(cfg.CorsOrigins, o)
		}
	}

	switch cfg.CounterBackend {
	case CounterBackendMongo, CounterBackendRedis:
	default:
		return nil, fmt.Errorf("invalid COUNTER_BACKEND: %q", cfg.CounterBackend)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT: %q", cfg.LogFormat)
	}

	if cfg.RedisDB, err = getInt("REDIS_DB", "0"); err != nil {
		return nil, err
	}

	jwtTTLSeconds, err := strconv.ParseInt(getEnv("JWT_TTL_SECONDS", "3600"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL_SECONDS: %w", err)
	}
	cfg.JwtTTL = time.Duration(jwtTTLSeconds) * time.Second

	if cfg.SmtpPort, err = getInt("SMTP_PORT", "587"); err != nil {
		return nil, err
	}
	if cfg.ImageMaxDimension, err = getInt("IMAGE_MAX_DIMENSION", "2048"); err != nil {
		return nil, err
	}
	if cfg.ImageMaxSizeMB, err = getInt("IMAGE_MAX_SIZE_MB", "10"); err != nil {
		return nil, err
	}
	if cfg.FeaturedLimit, err = getInt("FEATURED_LIMIT", "3"); err != nil {
		return nil, err
	}

	if cfg.RateLimitReadBucketSize, err = getInt("RATE_LIMIT_READ_BUCKET_SIZE", "20"); err != nil {
		return nil, err
	}
	if cfg.RateLimitReadRefillRate, err = getInt("RATE_LIMIT_READ_REFILL_RATE", "10"); err != nil {
		return nil, err
	}
	if cfg.RateLimitMailBucketSize, err = getInt("RATE_LIMIT_MAIL_BUCKET_SIZE", "2"); err != nil {
		return nil, err
	}
	if cfg.RateLimitMailRefillRate, err = getInt("RATE_LIMIT_MAIL_REFILL_RATE", "1"); err != nil {
		return nil, err
	}

	return cfg, nil
}
