package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	WSAddr            string
	TCPAddr           string
	HTTPAddr          string
	RedisURL          string // empty means in-memory layout store
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	MDNS              bool
	MCP               bool
	LogLevel          slog.Level
}

func LoadConfig() (*Config, error) {
	interval, err := getDuration("SIGNAGE_HEARTBEAT_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	timeout, err := getDuration("SIGNAGE_HEARTBEAT_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	if timeout <= interval {
		return nil, errors.New("SIGNAGE_HEARTBEAT_TIMEOUT must be greater than SIGNAGE_HEARTBEAT_INTERVAL")
	}

	mdns, err := getBool("SIGNAGE_MDNS", true)
	if err != nil {
		return nil, err
	}
	mcp, err := getBool("SIGNAGE_MCP", false)
	if err != nil {
		return nil, err
	}

	level, err := parseLogLevel(getEnv("SIGNAGE_LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		WSAddr:            getEnv("SIGNAGE_WS_ADDR", ":8080"),
		TCPAddr:           getEnv("SIGNAGE_TCP_ADDR", ":8888"),
		HTTPAddr:          getEnv("SIGNAGE_HTTP_ADDR", ":8090"),
		RedisURL:          os.Getenv("SIGNAGE_REDIS_URL"),
		HeartbeatInterval: interval,
		HeartbeatTimeout:  timeout,
		MDNS:              mdns,
		MCP:               mcp,
		LogLevel:          level,
	}
	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s format: %w", key, err)
	}
	return b, nil
}

func parseLogLevel(value string) (slog.Level, error) {
	switch value {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid SIGNAGE_LOG_LEVEL %q", value)
	}
}
