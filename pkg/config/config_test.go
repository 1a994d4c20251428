package config

import (
	"strings"
	"testing"
	"time"
)

func productionConfig() *Config {
	return &Config{
		Environment:          EnvProduction,
		SessionAuthKey:       strings.Repeat("a", 32),
		SessionEncryptionKey: strings.Repeat("b", 16),
		LogLevel:             "info",
		CORSAllowedOrigins:   "https://timetable.example.edu",
	}
}

func TestValidateForProduction_NonProductionNoop(t *testing.T) {
	cfg := &Config{Environment: EnvDevelopment, LogLevel: "debug"}
	if err := ValidateForProduction(cfg); err != nil {
		t.Fatalf("expected nil for development, got %v", err)
	}
}

func TestValidateForProduction_Valid(t *testing.T) {
	if err := ValidateForProduction(productionConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateForProduction_CollectsAllErrors(t *testing.T) {
	cfg := productionConfig()
	cfg.SessionAuthKey = "short"
	cfg.LogLevel = "debug"
	cfg.CORSAllowedOrigins = "*"

	err := ValidateForProduction(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"SESSION_AUTH_KEY", "LOG_LEVEL", "CORS_ALLOWED_ORIGINS"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLogRetention(t *testing.T) {
	tests := []struct {
		days int
		want time.Duration
	}{
		{0, 0},
		{-3, 0},
		{1, 24 * time.Hour},
		{30, 30 * 24 * time.Hour},
	}
	for _, tt := range tests {
		cfg := &Config{LogRetentionDays: tt.days}
		if got := cfg.LogRetention(); got != tt.want {
			t.Errorf("LogRetention(%d) = %v, want %v", tt.days, got, tt.want)
		}
	}
}
