package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret  string
	InternalToken string
}

// DispatchConfig tunes the reassignment scheduler.
type DispatchConfig struct {
	AssignmentTimeout time.Duration
	SweepBatchSize    int
}

type NotifyConfig struct {
	AMQPURL      string
	AMQPExchange string
	WebhookURL   string
	WebhookToken string
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Dispatch    DispatchConfig
	Notify      NotifyConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")

	v.AutomaticEnv()

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DISPATCH_ASSIGNMENT_TIMEOUT", 60*time.Second)
	v.SetDefault("DISPATCH_SWEEP_BATCH_SIZE", 100)
	v.SetDefault("AMQP_EXCHANGE", "driver_topic")

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			Driver:          v.GetString("DB_DRIVER"),
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret:  v.GetString("JWT_ACCESS_SECRET"),
			InternalToken: v.GetString("INTERNAL_TOKEN"),
		},
		Dispatch: DispatchConfig{
			AssignmentTimeout: v.GetDuration("DISPATCH_ASSIGNMENT_TIMEOUT"),
			SweepBatchSize:    v.GetInt("DISPATCH_SWEEP_BATCH_SIZE"),
		},
		Notify: NotifyConfig{
			AMQPURL:      v.GetString("AMQP_URL"),
			AMQPExchange: v.GetString("AMQP_EXCHANGE"),
			WebhookURL:   v.GetString("NOTIFY_WEBHOOK_URL"),
			WebhookToken: v.GetString("NOTIFY_WEBHOOK_TOKEN"),
		},
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Dispatch.SweepBatchSize <= 0 {
		cfg.Dispatch.SweepBatchSize = 100
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.DB.Driver != DriverPostgres && cfg.DB.Driver != DriverSQLite {
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.DB.Driver)
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Dispatch.AssignmentTimeout <= 0 {
		return fmt.Errorf("DISPATCH_ASSIGNMENT_TIMEOUT must be positive")
	}
	return nil
}
