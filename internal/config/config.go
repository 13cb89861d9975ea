// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all deskcanvas server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// RootDir is the directory the browser starts in.
	RootDir string

	// Thumbnails
	ThumbMaxSize int
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	cfg := &Config{
		ListenAddr:   envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:  envOr("METRICS_ADDR", ":9090"),
		LogLevel:     envOr("LOG_LEVEL", "info"),
		LogFormat:    envOr("LOG_FORMAT", "json"),
		RootDir:      envOr("ROOT_DIR", wd),
		ThumbMaxSize: envInt("THUMB_MAX_SIZE", 400),
	}

	info, err := os.Stat(cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("ROOT_DIR %s: %w", cfg.RootDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("ROOT_DIR %s is not a directory", cfg.RootDir)
	}
	if cfg.ThumbMaxSize <= 0 {
		return nil, fmt.Errorf("THUMB_MAX_SIZE must be positive, got %d", cfg.ThumbMaxSize)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
