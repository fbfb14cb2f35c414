package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/park285/Cheese-Chess-Server/internal/obslog"
)

var envKeys = []string{
	"CHESS_CONFIG_FILE", "HTTP_ADDR", "STORE_BACKEND", "DATABASE_URL", "REDIS_URL", "REDIS_KEY_PREFIX",
	"BCRYPT_COST", "CORS_ALLOWED_ORIGINS", "WS_PATH", "WS_PING_INTERVAL_SEC", "WS_WRITE_TIMEOUT_SEC",
	"MESSAGES_DIR", "BOARD_SQUARE_SIZE", "SHUTDOWN_TIMEOUT_SEC", "LOG_LEVEL", "LOG_TO_CONSOLE",
	"LOG_TO_FILE", "LOG_FILE", "LOG_CALLER", "LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.StoreBackend != BackendMemory || cfg.WSPath != "/ws" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.BcryptCost != 10 || cfg.RedisKeyPrefix != "chess" || len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "chess.yaml")
	body := "http_addr: \":9000\"\nstore_backend: redis\nredis_url: redis://file:6379/0\nws_ping_interval_sec: 5\ncors_allowed_origins: [\"https://a.example\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHESS_CONFIG_FILE", path)
	t.Setenv("REDIS_URL", "redis://env:6379/1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://b.example, https://c.example")
	t.Setenv("LOG_TO_FILE", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9000" || cfg.StoreBackend != BackendRedis || cfg.WSPingIntervalSec != 5 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.RedisURL != "redis://env:6379/1" {
		t.Fatalf("env should win, got %q", cfg.RedisURL)
	}
	if strings.Join(cfg.CORSAllowedOrigins, "|") != "https://b.example|https://c.example" {
		t.Fatalf("origins = %v", cfg.CORSAllowedOrigins)
	}
	if cfg.LogFile {
		t.Fatalf("LOG_TO_FILE=false not applied")
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"postgres without url", map[string]string{"STORE_BACKEND": "postgres"}, "DATABASE_URL"},
		{"redis without url", map[string]string{"STORE_BACKEND": "redis"}, "REDIS_URL"},
		{"unknown backend", map[string]string{"STORE_BACKEND": "mongo"}, "STORE_BACKEND"},
		{"bad int", map[string]string{"BCRYPT_COST": "ten"}, "BCRYPT_COST"},
		{"bad bool", map[string]string{"LOG_CALLER": "maybe"}, "LOG_CALLER"},
		{"bad ws path", map[string]string{"WS_PATH": "ws"}, "WS_PATH"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %s", err, tc.want)
			}
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHESS_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestLogEnvReachesLoggerOptions(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_TO_FILE", "false")
	t.Setenv("LOG_CALLER", "true")
	t.Setenv("LOG_FORMAT", "json")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	o := cfg.LogOptions()
	if o.Level != "debug" || o.File || !o.Console || !o.Caller || o.Format != "json" || o.Path != obslog.DefaultLogFile {
		t.Fatalf("unexpected logger options: %+v", o)
	}
}
