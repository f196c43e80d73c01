package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "production" {
		t.Fatalf("expected App.Env to be production, got %q", cfg.App.Env)
	}
	if !cfg.DB.IsSQLite() {
		t.Fatalf("expected sqlite driver by default, got %q", cfg.DB.Driver)
	}
	if !strings.HasPrefix(cfg.DB.DSN, "file:/tmp/boba-test.db?") {
		t.Fatalf("unexpected derived DSN %q", cfg.DB.DSN)
	}
	if !strings.Contains(cfg.DB.DSN, "_busy_timeout=5000") {
		t.Fatalf("expected busy timeout in DSN, got %q", cfg.DB.DSN)
	}
	if got := cfg.DB.TxWaitTimeout; got != 2*time.Second {
		t.Fatalf("expected tx wait timeout 2s, got %v", got)
	}
	if cfg.Ordering.MaxVisibleCycles != 10 {
		t.Fatalf("expected default max visible cycles 10, got %d", cfg.Ordering.MaxVisibleCycles)
	}
	if cfg.Redis.Enabled() {
		t.Fatal("redis should be disabled without URL or address")
	}
	if got := cfg.HTTP.CORSOrigins; len(got) != 1 || got[0] != "http://localhost:3000" {
		t.Fatalf("unexpected default CORS origins %v", got)
	}
	if cfg.HTTP.OrderRateLimit != 10 || cfg.HTTP.OrderRateWindow != time.Minute {
		t.Fatalf("unexpected order rate limit %d/%v", cfg.HTTP.OrderRateLimit, cfg.HTTP.OrderRateWindow)
	}
}

func TestLoad_CORSOriginsList(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("BOBA_CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 || cfg.HTTP.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.HTTP.CORSOrigins)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvDBDriver, DBDriverPostgres)

	if _, err := Load(); err == nil {
		t.Fatal("expected postgres without DSN to fail")
	}
}

func TestLoad_RejectsMalformedWindow(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvOrderingOpenAt, "9am")
	t.Setenv(EnvOrderingCloseAt, "21:00")

	if _, err := Load(); err == nil {
		t.Fatal("expected malformed window to fail")
	}
}

func TestLoad_RejectsUnknownTimeZone(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvOrderingTimeZone, "Mars/Olympus")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown timezone to fail")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "production")
	t.Setenv(EnvPort, "8081")
	t.Setenv(EnvDBPath, "/tmp/boba-test.db")
	t.Setenv(EnvDBTxWaitTimeout, "2s")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
}

func TestOrderingWindowEnabled(t *testing.T) {
	if (OrderingConfig{OpenAt: "09:00"}).WindowEnabled() {
		t.Fatal("window needs both ends")
	}
	if !(OrderingConfig{OpenAt: "09:00", CloseAt: "21:00"}).WindowEnabled() {
		t.Fatal("expected window enabled")
	}
}
