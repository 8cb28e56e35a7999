package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Log      LogConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Ledger   LedgerConfig
	Tasks    TasksConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds the Postgres connection. An empty DSN selects the
// in-memory store.
type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig holds broker settings for register events and inbound order events
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	RegisterTopic string
	OrderTopic    string
	GroupID       string
}

// LedgerConfig holds register ledger settings
type LedgerConfig struct {
	CommitRetries int
	CurrencyCode  string // ISO 4217, used in failure messages
	Locale        string // BCP 47 tag for number formatting
}

// TasksConfig holds the background task queue settings
type TasksConfig struct {
	Workers    int
	QueueSize  int
	MaxRetries int
	RetryDelay time.Duration
}

// Load loads configuration from .env, config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with TILL_ prefix (e.g., TILL_DATABASE_DSN)
// 2. .env file (only sets variables that are not already set)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/till-ledger")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("TILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Database: DatabaseConfig{
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Kafka: KafkaConfig{
			Enabled:       v.GetBool("kafka.enabled"),
			Brokers:       splitList(v.GetString("kafka.brokers")),
			RegisterTopic: v.GetString("kafka.register_topic"),
			OrderTopic:    v.GetString("kafka.order_topic"),
			GroupID:       v.GetString("kafka.group_id"),
		},
		Ledger: LedgerConfig{
			CommitRetries: v.GetInt("ledger.commit_retries"),
			CurrencyCode:  v.GetString("ledger.currency_code"),
			Locale:        v.GetString("ledger.locale"),
		},
		Tasks: TasksConfig{
			Workers:    v.GetInt("tasks.workers"),
			QueueSize:  v.GetInt("tasks.queue_size"),
			MaxRetries: v.GetInt("tasks.max_retries"),
			RetryDelay: v.GetDuration("tasks.retry_delay"),
		},
	}

	// commit_retries may legitimately be 0, so only default it when unset
	if !v.IsSet("ledger.commit_retries") {
		cfg.Ledger.CommitRetries = 3
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "till-ledger"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30 * time.Minute
	}
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.RegisterTopic == "" {
		cfg.Kafka.RegisterTopic = "register.entry_recorded"
	}
	if cfg.Kafka.OrderTopic == "" {
		cfg.Kafka.OrderTopic = "orders.events"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "till-ledger"
	}
	if cfg.Ledger.CurrencyCode == "" {
		cfg.Ledger.CurrencyCode = "USD"
	}
	if cfg.Ledger.Locale == "" {
		cfg.Ledger.Locale = "en-US"
	}
	if cfg.Tasks.Workers == 0 {
		cfg.Tasks.Workers = 2
	}
	if cfg.Tasks.QueueSize == 0 {
		cfg.Tasks.QueueSize = 256
	}
	if cfg.Tasks.MaxRetries == 0 {
		cfg.Tasks.MaxRetries = 3
	}
	if cfg.Tasks.RetryDelay == 0 {
		cfg.Tasks.RetryDelay = time.Second
	}
}

// Validate rejects settings the service cannot run with
func (c *Config) Validate() error {
	if c.Ledger.CommitRetries < 0 {
		return fmt.Errorf("ledger.commit_retries must not be negative, got %d", c.Ledger.CommitRetries)
	}
	if c.Tasks.Workers < 0 {
		return fmt.Errorf("tasks.workers must not be negative, got %d", c.Tasks.Workers)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
