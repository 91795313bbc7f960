package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_DSN", "host=localhost dbname=dispatch")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Environment != "development" {
		t.Fatalf("environment=%q want development", cfg.Environment)
	}
	if cfg.HTTP.Host != "0.0.0.0" || cfg.HTTP.Port != 8080 {
		t.Fatalf("unexpected http defaults: %+v", cfg.HTTP)
	}
	if cfg.DB.Driver != DriverPostgres {
		t.Fatalf("driver=%q want %q", cfg.DB.Driver, DriverPostgres)
	}
	if cfg.Dispatch.AssignmentTimeout != 60*time.Second {
		t.Fatalf("timeout=%v want 60s", cfg.Dispatch.AssignmentTimeout)
	}
	if cfg.Dispatch.SweepBatchSize != 100 {
		t.Fatalf("batch=%d want 100", cfg.Dispatch.SweepBatchSize)
	}
	if cfg.Notify.AMQPExchange != "driver_topic" {
		t.Fatalf("exchange=%q want driver_topic", cfg.Notify.AMQPExchange)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DISPATCH_ASSIGNMENT_TIMEOUT", "90s")
	t.Setenv("INTERNAL_TOKEN", "cron")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB.Driver != DriverSQLite {
		t.Fatalf("driver=%q want sqlite", cfg.DB.Driver)
	}
	if cfg.HTTP.Port != 9090 {
		t.Fatalf("port=%d want 9090", cfg.HTTP.Port)
	}
	if cfg.Dispatch.AssignmentTimeout != 90*time.Second {
		t.Fatalf("timeout=%v want 90s", cfg.Dispatch.AssignmentTimeout)
	}
	if cfg.Auth.InternalToken != "cron" {
		t.Fatalf("internal token=%q", cfg.Auth.InternalToken)
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing dsn", env: map[string]string{"DB_DSN": "", "JWT_ACCESS_SECRET": "x"}},
		{name: "missing secret", env: map[string]string{"DB_DSN": "x", "JWT_ACCESS_SECRET": ""}},
		{name: "unknown driver", env: map[string]string{"DB_DSN": "x", "JWT_ACCESS_SECRET": "x", "DB_DRIVER": "mysql"}},
		{name: "non-positive timeout", env: map[string]string{"DB_DSN": "x", "JWT_ACCESS_SECRET": "x", "DISPATCH_ASSIGNMENT_TIMEOUT": "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
