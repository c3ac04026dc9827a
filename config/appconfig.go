package config

import (
	"github.com/spf13/viper"
	"log"
	"time"
)

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type PostgresConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	StreamName   string `mapstructure:"stream_name"`
	StreamGroup  string `mapstructure:"stream_group"`
	ConsumerName string `mapstructure:"consumer_name"`
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	JaegerURL   string `mapstructure:"jaeger_url"`
}

// AccountConfig is the static per-account dispatch contract: gateway
// identity, capacity limits and the retry/deadline policy. Loaded once at
// startup and shared by every concurrent dispatch for the account.
type AccountConfig struct {
	Name                string  `mapstructure:"name"`
	ServiceName         string  `mapstructure:"service_name"`
	GatewayURL          string  `mapstructure:"gateway_url"`
	Price               float64 `mapstructure:"price"`
	Enabled             bool    `mapstructure:"enabled"`
	AvgProcessingTimeMs int     `mapstructure:"avg_processing_time_ms"`
	MaxConcurrency      int     `mapstructure:"max_concurrency"`
	RatePerSecond       int     `mapstructure:"rate_per_second"`
	MaxRetries          int     `mapstructure:"max_retries"`
	BaseBackoffMs       int     `mapstructure:"base_backoff_ms"`
	BackoffMultiplier   float64 `mapstructure:"backoff_multiplier"`
	CallTimeoutMs       int     `mapstructure:"call_timeout_ms"`
	DeadlineBudgetMs    int     `mapstructure:"deadline_budget_ms"`
	PollIntervalMs      int     `mapstructure:"poll_interval_ms"`
}

func (a *AccountConfig) AvgProcessingTime() time.Duration {
	return time.Duration(a.AvgProcessingTimeMs) * time.Millisecond
}

func (a *AccountConfig) BaseBackoff() time.Duration {
	return time.Duration(a.BaseBackoffMs) * time.Millisecond
}

func (a *AccountConfig) CallTimeout() time.Duration {
	return time.Duration(a.CallTimeoutMs) * time.Millisecond
}

func (a *AccountConfig) DeadlineBudget() time.Duration {
	return time.Duration(a.DeadlineBudgetMs) * time.Millisecond
}

func (a *AccountConfig) PollInterval() time.Duration {
	return time.Duration(a.PollIntervalMs) * time.Millisecond
}

type AppConfig struct {
	Server    *ServerConfig    `mapstructure:"server"`
	Postgres  *PostgresConfig  `mapstructure:"postgres"`
	Redis     *RedisConfig     `mapstructure:"redis"`
	Telemetry *TelemetryConfig `mapstructure:"telemetry"`
	Account   *AccountConfig   `mapstructure:"account"`
}

func LoadConfig() (*AppConfig, error) {

	viper.AutomaticEnv()

	viper.SetDefault("server.port", 1323)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.service_name", "payflow")
	viper.SetDefault("telemetry.jaeger_url", "http://jaeger:14268/api/traces")
	viper.SetDefault("redis.stream_name", "payments")
	viper.SetDefault("redis.stream_group", "payments-group")
	viper.SetDefault("redis.consumer_name", "payflow-worker")
	viper.SetDefault("account.name", "default")
	viper.SetDefault("account.service_name", "payments")
	viper.SetDefault("account.gateway_url", "http://localhost:8001/payments")
	viper.SetDefault("account.price", 0.05)
	viper.SetDefault("account.enabled", true)
	viper.SetDefault("account.avg_processing_time_ms", 100)
	viper.SetDefault("account.max_concurrency", 10)
	viper.SetDefault("account.rate_per_second", 50)
	viper.SetDefault("account.max_retries", 5)
	viper.SetDefault("account.base_backoff_ms", 100)
	viper.SetDefault("account.backoff_multiplier", 2.0)
	viper.SetDefault("account.call_timeout_ms", 500)
	viper.SetDefault("account.deadline_budget_ms", 5000)
	viper.SetDefault("account.poll_interval_ms", 5)

	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.host", "SERVER_HOST")
	_ = viper.BindEnv("postgres.url", "POSTGRES_URL")
	_ = viper.BindEnv("redis.url", "REDIS_URL")
	_ = viper.BindEnv("redis.stream_name", "REDIS_STREAM_NAME")
	_ = viper.BindEnv("redis.stream_group", "REDIS_STREAM_GROUP")
	_ = viper.BindEnv("redis.consumer_name", "REDIS_CONSUMER_NAME")
	_ = viper.BindEnv("telemetry.enabled", "TELEMETRY_ENABLED")
	_ = viper.BindEnv("telemetry.service_name", "TELEMETRY_SERVICE_NAME")
	_ = viper.BindEnv("telemetry.jaeger_url", "JAEGER_URL")
	_ = viper.BindEnv("account.name", "ACCOUNT_NAME")
	_ = viper.BindEnv("account.service_name", "ACCOUNT_SERVICE_NAME")
	_ = viper.BindEnv("account.gateway_url", "ACCOUNT_GATEWAY_URL")
	_ = viper.BindEnv("account.price", "ACCOUNT_PRICE")
	_ = viper.BindEnv("account.enabled", "ACCOUNT_ENABLED")
	_ = viper.BindEnv("account.avg_processing_time_ms", "ACCOUNT_AVG_PROCESSING_TIME_MS")
	_ = viper.BindEnv("account.max_concurrency", "ACCOUNT_MAX_CONCURRENCY")
	_ = viper.BindEnv("account.rate_per_second", "ACCOUNT_RATE_PER_SECOND")
	_ = viper.BindEnv("account.max_retries", "ACCOUNT_MAX_RETRIES")
	_ = viper.BindEnv("account.base_backoff_ms", "ACCOUNT_BASE_BACKOFF_MS")
	_ = viper.BindEnv("account.backoff_multiplier", "ACCOUNT_BACKOFF_MULTIPLIER")
	_ = viper.BindEnv("account.call_timeout_ms", "ACCOUNT_CALL_TIMEOUT_MS")
	_ = viper.BindEnv("account.deadline_budget_ms", "ACCOUNT_DEADLINE_BUDGET_MS")
	_ = viper.BindEnv("account.poll_interval_ms", "ACCOUNT_POLL_INTERVAL_MS")

	var config AppConfig
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("unable to decode into struct, %v", err)
	}

	return &config, nil
}
