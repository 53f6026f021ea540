package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the reminder service
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	NATS      NATSConfig
	WebSocket WebSocketConfig
	Scheduler SchedulerConfig
	Presence  PresenceConfig
	Email     EmailConfig
	SMS       SMSConfig
	Push      PushConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	PubSub    PubSubConfig
	App       AppConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NATSConfig holds NATS connection configuration
type NATSConfig struct {
	URL           string
	ConsumerName  string
	MaxReconnects int
	ReconnectWait time.Duration
}

// WebSocketConfig holds WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	MaxMessageSize  int64
}

// SchedulerConfig holds reminder scheduler tuning
type SchedulerConfig struct {
	TickInterval      time.Duration
	FiringWindow      time.Duration
	LookaheadGuard    time.Duration
	DispatchTimeout   time.Duration
	WorkerConcurrency int
}

// PresenceConfig holds presence tracking tuning
type PresenceConfig struct {
	StaleAfter    time.Duration
	SweepInterval time.Duration
}

// EmailConfig holds outbound email provider configuration
type EmailConfig struct {
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	SESFrom            string
	SESFromName        string
	SendGridAPIKey     string
	SendGridFrom       string
	SMTPHost           string
	SMTPPort           int
	SMTPUsername       string
	SMTPPassword       string
	SMTPFrom           string
	SMTPFromName       string
	EnableFailover     bool
}

// SMSConfig holds outbound SMS configuration
type SMSConfig struct {
	Enabled bool
	SNSFrom string // Sender ID or origination number
}

// PushConfig holds FCM push configuration
type PushConfig struct {
	Enabled        bool
	FCMProjectID   string
	FCMCredentials string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig holds reminder email rate limit configuration
type RateLimitConfig struct {
	TenantHourlyLimit    int
	TenantDailyLimit     int
	RecipientHourlyLimit int
}

// PubSubConfig holds GCP Pub/Sub audit stream configuration
type PubSubConfig struct {
	Enabled   bool
	ProjectID string
	TopicID   string
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment string
	LogLevel    string
	BaseURL     string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "leadpulse_reminders"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", "nats://nats.nats.svc.cluster.local:4222"),
			ConsumerName:  getEnv("NATS_CONSUMER_NAME", "reminder-service"),
			MaxReconnects: getEnvAsInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited reconnects for production resilience
			ReconnectWait: getEnvAsDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 1024),
			PingInterval:    getEnvAsDuration("WS_PING_INTERVAL", 30*time.Second),
			PongWait:        getEnvAsDuration("WS_PONG_WAIT", 60*time.Second),
			WriteWait:       getEnvAsDuration("WS_WRITE_WAIT", 10*time.Second),
			MaxMessageSize:  getEnvAsInt64("WS_MAX_MESSAGE_SIZE", 64*1024),
		},
		Scheduler: SchedulerConfig{
			TickInterval:      getEnvAsDuration("SCHEDULER_TICK_INTERVAL", 60*time.Second),
			FiringWindow:      getEnvAsDuration("SCHEDULER_FIRING_WINDOW", 5*time.Minute),
			LookaheadGuard:    getEnvAsDuration("SCHEDULER_LOOKAHEAD_GUARD", time.Hour),
			DispatchTimeout:   getEnvAsDuration("SCHEDULER_DISPATCH_TIMEOUT", 10*time.Second),
			WorkerConcurrency: getEnvAsInt("SCHEDULER_WORKERS", 4),
		},
		Presence: PresenceConfig{
			StaleAfter:    getEnvAsDuration("PRESENCE_STALE_AFTER", time.Hour),
			SweepInterval: getEnvAsDuration("PRESENCE_SWEEP_INTERVAL", 10*time.Minute),
		},
		Email: EmailConfig{
			AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
			AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			SESFrom:            getEnv("SES_FROM", "reminders@leadpulse.io"),
			SESFromName:        getEnv("SES_FROM_NAME", "LeadPulse CRM"),
			SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),
			SendGridFrom:       getEnv("SENDGRID_FROM", "reminders@leadpulse.io"),
			SMTPHost:           getEnv("SMTP_HOST", ""),
			SMTPPort:           getEnvAsInt("SMTP_PORT", 587),
			SMTPUsername:       getEnv("SMTP_USERNAME", ""),
			SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
			SMTPFrom:           getEnv("SMTP_FROM", "reminders@leadpulse.io"),
			SMTPFromName:       getEnv("SMTP_FROM_NAME", "LeadPulse CRM"),
			EnableFailover:     getEnvAsBool("EMAIL_ENABLE_FAILOVER", true),
		},
		SMS: SMSConfig{
			Enabled: getEnvAsBool("SMS_ENABLED", false),
			SNSFrom: getEnv("SNS_SENDER_ID", ""),
		},
		Push: PushConfig{
			Enabled:        getEnvAsBool("PUSH_ENABLED", false),
			FCMProjectID:   getEnv("FCM_PROJECT_ID", ""),
			FCMCredentials: getEnv("FCM_CREDENTIALS_JSON", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			TenantHourlyLimit:    getEnvAsInt("RATE_LIMIT_TENANT_HOURLY", 500),
			TenantDailyLimit:     getEnvAsInt("RATE_LIMIT_TENANT_DAILY", 5000),
			RecipientHourlyLimit: getEnvAsInt("RATE_LIMIT_RECIPIENT_HOURLY", 20),
		},
		PubSub: PubSubConfig{
			Enabled:   getEnvAsBool("PUBSUB_ENABLED", false),
			ProjectID: getEnv("PUBSUB_PROJECT_ID", ""),
			TopicID:   getEnv("PUBSUB_TOPIC_ID", "reminder-fired-events"),
		},
		App: AppConfig{
			Environment: getEnv("APP_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			BaseURL:     getEnv("APP_BASE_URL", "https://app.leadpulse.io"),
		},
	}, nil
}

// GetServerAddress returns the server address in host:port format
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetDatabaseDSN returns the PostgreSQL connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
