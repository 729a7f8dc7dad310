package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config groups the application settings, read through Viper from the
// environment and, optionally, a .env file in the working directory.
type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	DB       DBConfig
	JWT      JWTConfig
	Admin    AdminConfig
	Orders   OrdersConfig
	RabbitMQ RabbitMQConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// HTTPConfig holds the HTTP listener settings.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr returns the listen address (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DBConfig describes the relational store.
// When DatabaseURL is set it is used verbatim; otherwise a PostgreSQL DSN is
// assembled from the individual fields.
type DBConfig struct {
	Driver       string // postgres | sqlite
	DatabaseURL  string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	Timeout      time.Duration // upper bound for a single request's store work
	Debug        bool
}

// ConnectionString returns DatabaseURL if set, the assembled DSN otherwise.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN builds a PostgreSQL URL, escaping special characters in the credentials.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// JWTConfig holds session token settings.
type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// AdminConfig holds the bootstrap administrator credentials. Both empty
// disables the bootstrap step.
type AdminConfig struct {
	Username string
	Password string
}

// OrdersConfig holds order intake settings.
type OrdersConfig struct {
	NumberPrefix    string
	PublicRateLimit float64 // public submissions per second per client IP
	PublicRateBurst int
}

// RabbitMQConfig holds the event broker settings. An empty URL disables publishing.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// Load reads the configuration. Environment variables take precedence over
// the optional .env file.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // the file is optional

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("APP_ENV"),
			Name:     v.GetString("APP_NAME"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			Driver:       v.GetString("DB_DRIVER"),
			DatabaseURL:  v.GetString("DATABASE_URL"),
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSLMODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
			Timeout:      v.GetDuration("STORE_TIMEOUT"),
			Debug:        v.GetBool("DB_DEBUG"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			TTL:    v.GetDuration("JWT_TTL"),
		},
		Admin: AdminConfig{
			Username: v.GetString("ADMIN_USERNAME"),
			Password: v.GetString("ADMIN_PASSWORD"),
		},
		Orders: OrdersConfig{
			NumberPrefix:    v.GetString("ORDER_PREFIX"),
			PublicRateLimit: v.GetFloat64("PUBLIC_RATE_LIMIT"),
			PublicRateBurst: v.GetInt("PUBLIC_RATE_BURST"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      v.GetString("RABBITMQ_URL"),
			Exchange: v.GetString("RABBITMQ_EXCHANGE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "orderdesk")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "orderdesk")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("ORDER_PREFIX", "AT")
	v.SetDefault("PUBLIC_RATE_LIMIT", 1.0)
	v.SetDefault("PUBLIC_RATE_BURST", 5)
	v.SetDefault("RABBITMQ_EXCHANGE", "orders")
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("config: JWT_SECRET is required")
	}
	if c.DB.Driver == "sqlite" && c.DB.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required for the sqlite driver")
	}
	if (c.Admin.Username == "") != (c.Admin.Password == "") {
		return fmt.Errorf("config: ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}
	return nil
}
