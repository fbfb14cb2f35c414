package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/park285/Cheese-Chess-Server/internal/obslog"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type AppConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	StoreBackend   string `yaml:"store_backend"`
	DatabaseURL    string `yaml:"database_url"`
	RedisURL       string `yaml:"redis_url"`
	RedisKeyPrefix string `yaml:"redis_key_prefix"`

	BcryptCost         int      `yaml:"bcrypt_cost"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	WSPath            string `yaml:"ws_path"`
	WSPingIntervalSec int    `yaml:"ws_ping_interval_sec"`
	WSWriteTimeoutSec int    `yaml:"ws_write_timeout_sec"`

	MessagesDir        string `yaml:"messages_dir"`
	BoardSquareSize    int    `yaml:"board_square_size"`
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec"`

	LogLevel   string `yaml:"log_level"`
	LogConsole bool   `yaml:"log_to_console"`
	LogFile    bool   `yaml:"log_to_file"`
	LogPath    string `yaml:"log_file"`
	LogCaller  bool   `yaml:"log_caller"`
	LogFormat  string `yaml:"log_format"`
}

func Defaults() *AppConfig {
	return &AppConfig{
		HTTPAddr:           ":8080",
		StoreBackend:       BackendMemory,
		RedisKeyPrefix:     "chess",
		BcryptCost:         10,
		CORSAllowedOrigins: []string{"*"},
		WSPath:             "/ws",
		WSPingIntervalSec:  30,
		WSWriteTimeoutSec:  10,
		BoardSquareSize:    64,
		ShutdownTimeoutSec: 10,
		LogLevel:           "info",
		LogConsole:         true,
		LogFile:            true,
		LogPath:            obslog.DefaultLogFile,
		LogFormat:          "legacy",
	}
}

// Load applies defaults, then CHESS_CONFIG_FILE if set, then the environment.
func Load() (*AppConfig, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("CHESS_CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.StoreBackend, "STORE_BACKEND")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.RedisKeyPrefix, "REDIS_KEY_PREFIX")
	setString(&cfg.WSPath, "WS_PATH")
	setString(&cfg.MessagesDir, "MESSAGES_DIR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogPath, "LOG_FILE")
	setString(&cfg.LogFormat, "LOG_FORMAT")

	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}

	ints := []struct {
		dst *int
		key string
	}{
		{&cfg.BcryptCost, "BCRYPT_COST"},
		{&cfg.WSPingIntervalSec, "WS_PING_INTERVAL_SEC"},
		{&cfg.WSWriteTimeoutSec, "WS_WRITE_TIMEOUT_SEC"},
		{&cfg.BoardSquareSize, "BOARD_SQUARE_SIZE"},
		{&cfg.ShutdownTimeoutSec, "SHUTDOWN_TIMEOUT_SEC"},
	}
	for _, it := range ints {
		if err := setInt(it.dst, it.key); err != nil {
			return err
		}
	}

	bools := []struct {
		dst *bool
		key string
	}{
		{&cfg.LogConsole, "LOG_TO_CONSOLE"},
		{&cfg.LogFile, "LOG_TO_FILE"},
		{&cfg.LogCaller, "LOG_CALLER"},
	}
	for _, it := range bools {
		if err := setBool(it.dst, it.key); err != nil {
			return err
		}
	}
	return nil
}

// LogOptions maps the LOG_* settings onto the logger options.
func (c AppConfig) LogOptions() obslog.Options {
	return obslog.Options{
		Level:   c.LogLevel,
		Console: c.LogConsole,
		File:    c.LogFile,
		Path:    c.LogPath,
		Caller:  c.LogCaller,
		Format:  c.LogFormat,
	}
}

func (c *AppConfig) Validate() error {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return errors.New("REDIS_URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("STORE_BACKEND %q is not one of memory, postgres, redis", c.StoreBackend)
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("HTTP_ADDR is required")
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		return fmt.Errorf("WS_PATH %q must start with /", c.WSPath)
	}
	if c.WSPingIntervalSec <= 0 || c.WSWriteTimeoutSec <= 0 || c.ShutdownTimeoutSec <= 0 {
		return errors.New("WS_PING_INTERVAL_SEC, WS_WRITE_TIMEOUT_SEC and SHUTDOWN_TIMEOUT_SEC must be positive")
	}
	if len(c.CORSAllowedOrigins) == 0 {
		c.CORSAllowedOrigins = []string{"*"}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
