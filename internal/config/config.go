package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig    `mapstructure:"server"`
	Database    DatabaseConfig  `mapstructure:"database"`
	JWT         JWTConfig       `mapstructure:"jwt"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Push        PushConfig      `mapstructure:"push"`
	SMTP        SMTPConfig      `mapstructure:"smtp"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	Log         LogConfig       `mapstructure:"log"`
	FrontendURL string          `mapstructure:"frontend_url"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	URL          string `mapstructure:"url"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type PushConfig struct {
	Subscriber      string `mapstructure:"subscriber"`
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	TTL             int    `mapstructure:"ttl"`
	MaxParallel     int    `mapstructure:"max_parallel"`
}

type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// secrets holds values that must never live in the config file.
// They overlay whatever the file provided.
type secrets struct {
	DatabasePassword string `envconfig:"DATABASE_PASSWORD"`
	JWTSecret        string `envconfig:"JWT_SECRET"`
	VAPIDPublicKey   string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey  string `envconfig:"VAPID_PRIVATE_KEY"`
	SMTPPassword     string `envconfig:"SMTP_PASSWORD"`
	RedisURL         string `envconfig:"REDIS_URL"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var sec secrets
	if err := envconfig.Process("", &sec); err != nil {
		return nil, fmt.Errorf("failed to read secrets from environment: %w", err)
	}
	if sec.DatabasePassword != "" {
		config.Database.Password = sec.DatabasePassword
	}
	if sec.JWTSecret != "" {
		config.JWT.Secret = sec.JWTSecret
	}
	if sec.VAPIDPublicKey != "" {
		config.Push.VAPIDPublicKey = sec.VAPIDPublicKey
	}
	if sec.VAPIDPrivateKey != "" {
		config.Push.VAPIDPrivateKey = sec.VAPIDPrivateKey
	}
	if sec.SMTPPassword != "" {
		config.SMTP.Password = sec.SMTPPassword
	}
	if sec.RedisURL != "" {
		config.Redis.URL = sec.RedisURL
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if c.Push.VAPIDPublicKey == "" || c.Push.VAPIDPrivateKey == "" {
		return fmt.Errorf("VAPID key pair is required")
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.TimeoutSeconds == 0 {
		c.Server.TimeoutSeconds = 30
	}
	if c.JWT.ExpiryHours == 0 {
		c.JWT.ExpiryHours = 24
	}
	return nil
}
