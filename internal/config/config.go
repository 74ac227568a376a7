package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// Config is the full application configuration. It is loaded once at startup
// and injected into the components that need it; business logic never reads
// the process environment directly.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Identity   IdentityConfig   `mapstructure:"identity"`
	Invite     InviteConfig     `mapstructure:"invite"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	S3         S3Config         `mapstructure:"s3"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" envconfig:"DB_HOST"`
	Port     int    `mapstructure:"port" envconfig:"DB_PORT"`
	User     string `mapstructure:"user" envconfig:"DB_USER"`
	Password string `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name     string `mapstructure:"name" envconfig:"DB_NAME"`
	SSLMode  string `mapstructure:"sslmode" envconfig:"DB_SSLMODE"`
}

// IdentityConfig points at the external identity provider's admin API.
// ServiceKey is the privileged credential used for account creation,
// invitation dispatch and compensation deletes.
type IdentityConfig struct {
	BaseURL    string        `mapstructure:"base_url" envconfig:"IDENTITY_BASE_URL"`
	ServiceKey string        `mapstructure:"service_key" envconfig:"IDENTITY_SERVICE_KEY"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// InviteConfig controls invitation dispatch. Mode "provider" asks the
// identity provider to send the invite; mode "smtp" sends it from our own
// mailer. RedirectURL is the post-click landing target where the patient
// sets their credential.
type InviteConfig struct {
	Mode        string `mapstructure:"mode"`
	RedirectURL string `mapstructure:"redirect_url" envconfig:"INVITE_REDIRECT_URL"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host" envconfig:"SMTP_HOST"`
	Port     int    `mapstructure:"port" envconfig:"SMTP_PORT"`
	Username string `mapstructure:"username" envconfig:"SMTP_USERNAME"`
	Password string `mapstructure:"password" envconfig:"SMTP_PASSWORD"`
	From     string `mapstructure:"from"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint" envconfig:"S3_ENDPOINT"`
	Region          string `mapstructure:"region" envconfig:"S3_REGION"`
	AccessKeyID     string `mapstructure:"access_key_id" envconfig:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `mapstructure:"secret_access_key" envconfig:"S3_SECRET_ACCESS_KEY"`
	BucketName      string `mapstructure:"bucket_name" envconfig:"S3_BUCKET_NAME"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" envconfig:"REDIS_URL"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret" envconfig:"JWT_SECRET"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

type ReconcilerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	InviteAge    time.Duration `mapstructure:"invite_age"`
	BatchSize    int           `mapstructure:"batch_size"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// LoadConfig reads config.yml and applies environment overrides.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/app")
	viper.AddConfigPath("/app/config")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets and deploy-specific endpoints come from the environment.
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("identity.timeout", "10s")
	viper.SetDefault("invite.mode", "provider")
	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.retry_backoff", "100ms")
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)
	viper.SetDefault("outbox.batch_size", 100)
	viper.SetDefault("outbox.poll_interval", "5s")
	viper.SetDefault("outbox.retry_attempts", 3)
	viper.SetDefault("outbox.retry_delay", "5s")
	viper.SetDefault("reconciler.poll_interval", "1m")
	viper.SetDefault("reconciler.invite_age", "10m")
	viper.SetDefault("reconciler.batch_size", 50)
	viper.SetDefault("rate_limit.rps", 50)
	viper.SetDefault("rate_limit.burst", 100)
}

func (c *Config) validate() error {
	if c.Identity.BaseURL == "" {
		return fmt.Errorf("identity.base_url is required")
	}
	if c.Identity.ServiceKey == "" {
		return fmt.Errorf("identity.service_key is required")
	}
	if c.Invite.RedirectURL == "" {
		return fmt.Errorf("invite.redirect_url is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	return nil
}
