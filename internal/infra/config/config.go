package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	OTP       OTPSettings       `mapstructure:"otp"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Provider  ProviderSettings  `mapstructure:"provider"`
	Mailer    MailerSettings    `mapstructure:"mailer"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name        string   `mapstructure:"name"`
	Env         string   `mapstructure:"env"`
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the ephemeral store used for pending
// registrations and rate-limit counters.
type RedisSettings struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	PendingPrefix   string `mapstructure:"pending_prefix"`
	RateLimitPrefix string `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the async event producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

type JWTSettings struct {
	AccessSecret    string        `mapstructure:"access_secret"`
	RefreshSecret   string        `mapstructure:"refresh_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// Argon2Settings configures Argon2id password hashing parameters.
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type OTPSettings struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// RateLimitRule carries the fixed-window budget for one operation.
type RateLimitRule struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Window      time.Duration `mapstructure:"window"`
	Block       time.Duration `mapstructure:"block"`
}

// RateLimitSettings parameterises the per-operation limits.
type RateLimitSettings struct {
	Login     RateLimitRule `mapstructure:"login"`
	OTPSend   RateLimitRule `mapstructure:"otp_send"`
	OTPVerify RateLimitRule `mapstructure:"otp_verify"`
}

// ProviderSettings points at the hosted auth provider used for the
// session-exchange flow.
type ProviderSettings struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MailerSettings configures the transactional mail API client.
type MailerSettings struct {
	APIURL    string        `mapstructure:"api_url"`
	APIKey    string        `mapstructure:"api_key"`
	FromEmail string        `mapstructure:"from_email"`
	FromName  string        `mapstructure:"from_name"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("AIFSHOP")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.cors_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.pending_prefix",
		"redis.rate_limit_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"jwt.access_secret",
		"jwt.refresh_secret",
		"jwt.access_token_ttl",
		"jwt.refresh_token_ttl",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"otp.ttl",
		"rate_limit.login.max_attempts",
		"rate_limit.login.window",
		"rate_limit.login.block",
		"rate_limit.otp_send.max_attempts",
		"rate_limit.otp_send.window",
		"rate_limit.otp_send.block",
		"rate_limit.otp_verify.max_attempts",
		"rate_limit.otp_verify.window",
		"rate_limit.otp_verify.block",
		"provider.base_url",
		"provider.api_key",
		"provider.timeout",
		"mailer.api_url",
		"mailer.api_key",
		"mailer.from_email",
		"mailer.from_name",
		"mailer.timeout",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.App.Env == "production" {
		if cfg.JWT.AccessSecret == "" || cfg.JWT.RefreshSecret == "" {
			return nil, fmt.Errorf("jwt secrets are required in production")
		}
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "aifshop-auth")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.cors_origins", []string{"*"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "aifshop")
	v.SetDefault("postgres.password", "aifshop_password")
	v.SetDefault("postgres.database", "aifshop")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.pending_prefix", "shop:pending")
	v.SetDefault("redis.rate_limit_prefix", "shop:ratelimit")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "shop")
	v.SetDefault("kafka.async", true)

	v.SetDefault("jwt.access_secret", "dev-access-secret")
	v.SetDefault("jwt.refresh_secret", "dev-refresh-secret")
	v.SetDefault("jwt.access_token_ttl", "15m")
	v.SetDefault("jwt.refresh_token_ttl", "168h")

	v.SetDefault("argon2.memory", 65536) // 64 MiB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 1)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("otp.ttl", "10m")

	v.SetDefault("rate_limit.login.max_attempts", 10)
	v.SetDefault("rate_limit.login.window", "15m")
	v.SetDefault("rate_limit.login.block", "15m")
	v.SetDefault("rate_limit.otp_send.max_attempts", 5)
	v.SetDefault("rate_limit.otp_send.window", "1h")
	v.SetDefault("rate_limit.otp_send.block", "15m")
	v.SetDefault("rate_limit.otp_verify.max_attempts", 5)
	v.SetDefault("rate_limit.otp_verify.window", "10m")
	v.SetDefault("rate_limit.otp_verify.block", "5m")

	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.timeout", "10s")

	v.SetDefault("mailer.api_url", "")
	v.SetDefault("mailer.api_key", "")
	v.SetDefault("mailer.from_email", "noreply@aifshop.example.com")
	v.SetDefault("mailer.from_name", "AIFShop")
	v.SetDefault("mailer.timeout", "10s")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "aifshop-auth")
	v.SetDefault("telemetry.sampling_rate", 1.0)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "AIFSHOP_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
