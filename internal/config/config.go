package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Transports TransportsConfig `mapstructure:"transports"`
	Auth       AuthConfig       `mapstructure:"auth"`
	TTL        TTLConfig        `mapstructure:"ttl"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	ConsumerGroupID string   `mapstructure:"consumer_group_id"`
	Topics          []string `mapstructure:"topics"`
}

type WorkerConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	MaxRetries      int           `mapstructure:"max_retries"`
	BaseBackoff     time.Duration `mapstructure:"base_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
}

// TransportsConfig points at the external email and push gateways.
type TransportsConfig struct {
	EmailEndpoint string `mapstructure:"email_endpoint"`
	EmailAPIKey   string `mapstructure:"email_api_key"`
	PushEndpoint  string `mapstructure:"push_endpoint"`
	PushAPIKey    string `mapstructure:"push_api_key"`
}

type AuthConfig struct {
	// JWTSecret verifies user-facing bearer tokens (HMAC).
	JWTSecret string `mapstructure:"jwt_secret"`
	// ServiceSecret guards the service-to-service endpoints.
	ServiceSecret string `mapstructure:"service_secret"`
}

type TTLConfig struct {
	JobRetentionDays   int `mapstructure:"job_retention_days"`   // Default: 30
	InboxRetentionDays int `mapstructure:"inbox_retention_days"` // Default: 90
}

// Load reads configuration from environment variables and config files.
// Environment variables override file values. Prefix: FUNDLANE_NOTIF_
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", "8090")
	v.SetDefault("server.env", "development")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "fundlane_notification")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.consumer_group_id", "fundlane-notification-group")
	v.SetDefault("kafka.topics", []string{
		"deposit-events", "withdrawal-events", "contract-events",
		"security-events", "chat-events", "notification-commands",
		"change-events",
	})
	v.SetDefault("worker.batch_size", 25)
	v.SetDefault("worker.max_retries", 5)
	v.SetDefault("worker.base_backoff", 30*time.Second)
	v.SetDefault("worker.max_backoff", time.Hour)
	v.SetDefault("worker.dispatch_timeout", 10*time.Second)
	v.SetDefault("transports.email_endpoint", "http://localhost:8025")
	v.SetDefault("transports.push_endpoint", "http://localhost:8030")
	v.SetDefault("ttl.job_retention_days", 30)
	v.SetDefault("ttl.inbox_retention_days", 90)

	// Environment variables (e.g. DATABASE_HOST -> database.host)
	v.SetEnvPrefix("FUNDLANE_NOTIF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Also support simple env vars without prefix for Docker Compose convenience
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("auth.service_secret", "SERVICE_SECRET")
	v.BindEnv("transports.email_api_key", "EMAIL_API_KEY")
	v.BindEnv("transports.push_api_key", "PUSH_API_KEY")
	v.BindEnv("server.port", "PORT")

	// Try loading config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig() // Not required

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" dbname=" + d.Name +
		" user=" + d.User +
		" password=" + d.Password +
		" sslmode=disable"
}
