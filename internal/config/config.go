package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Identity  IdentityConfig
	Retrieval RetrievalConfig
	Workflow  WorkflowConfig
	Audit     AuditConfig
	Outbox    OutboxConfig
	Security  SecurityConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

// IdentityConfig points at the national professional registry used to
// verify requesting clinicians.
type IdentityConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// RetrievalConfig tunes the circuit breaker and retry loop used for
// storage-node and identity calls.
type RetrievalConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	FailureThreshold  int           `mapstructure:"failure_threshold"`
	ResetTimeout      time.Duration `mapstructure:"reset_timeout"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	ResponseTimeout   time.Duration `mapstructure:"response_timeout"`
	BackoffInitial    time.Duration `mapstructure:"backoff_initial"`
	BackoffMultiplier int           `mapstructure:"backoff_multiplier"`
}

type WorkflowConfig struct {
	RequestTTL     time.Duration `mapstructure:"request_ttl"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	SweepBatchSize int           `mapstructure:"sweep_batch_size"`
	DenialLookback time.Duration `mapstructure:"denial_lookback"`
}

type AuditConfig struct {
	RetentionDays int  `mapstructure:"retention_days"`
	Async         bool `mapstructure:"async"`
}

// SecurityConfig holds the key sealing clinic credentials at rest. An empty
// key disables sealing, which is only acceptable in development.
type SecurityConfig struct {
	EncryptionKey string `mapstructure:"encryption_key"`
}

type OutboxConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)

	viper.SetDefault("retrieval.max_attempts", 3)
	viper.SetDefault("retrieval.failure_threshold", 5)
	viper.SetDefault("retrieval.reset_timeout", time.Minute)
	viper.SetDefault("retrieval.connect_timeout", 5*time.Second)
	viper.SetDefault("retrieval.response_timeout", 30*time.Second)
	viper.SetDefault("retrieval.backoff_initial", time.Second)
	viper.SetDefault("retrieval.backoff_multiplier", 2)

	viper.SetDefault("workflow.request_ttl", 48*time.Hour)
	viper.SetDefault("workflow.sweep_interval", 5*time.Minute)
	viper.SetDefault("workflow.sweep_batch_size", 100)
	viper.SetDefault("workflow.denial_lookback", 30*24*time.Hour)

	viper.SetDefault("audit.retention_days", 365)
	viper.SetDefault("audit.async", true)

	viper.SetDefault("outbox.poll_interval", 5*time.Second)
	viper.SetDefault("outbox.batch_size", 50)
	viper.SetDefault("outbox.max_retries", 5)
}

// ResilientDelays expands the configured geometric backoff into the
// per-attempt delay slice the retry loop consumes.
func (c RetrievalConfig) ResilientDelays() []time.Duration {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	delays := make([]time.Duration, attempts)
	d := c.BackoffInitial
	if d <= 0 {
		d = time.Second
	}
	mult := c.BackoffMultiplier
	if mult <= 0 {
		mult = 2
	}
	for i := range delays {
		delays[i] = d
		d *= time.Duration(mult)
	}
	return delays
}
