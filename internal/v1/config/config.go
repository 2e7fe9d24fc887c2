package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration.
type Config struct {
	// Listen port for the HTTP + WebSocket server.
	Port string

	// Single allowed cross-origin for browser clients.
	ClientOrigin string

	// Directory that receives reassembled uploads and backs /uploads.
	UploadDir string

	// Optional variables with defaults.
	GoEnv           string
	LogLevel        string
	DevelopmentMode bool

	// Rate limits in ulule/limiter formatted notation (e.g. "100-M").
	RateLimitAPI  string
	RateLimitWsIP string
}

// ValidateEnv validates environment variables and returns a Config object.
// Returns an error if any variable is present but invalid.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	// PORT defaults to 3001.
	cfg.Port = getEnvOrDefault("PORT", "3001")
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
	}

	// CLIENT_ORIGIN is the one origin allowed to talk to us cross-origin.
	cfg.ClientOrigin = getEnvOrDefault("CLIENT_ORIGIN", "http://localhost:3000")
	if !strings.HasPrefix(cfg.ClientOrigin, "http://") && !strings.HasPrefix(cfg.ClientOrigin, "https://") {
		errs = append(errs, fmt.Sprintf("CLIENT_ORIGIN must be an http(s) origin (got '%s')", cfg.ClientOrigin))
	}

	// UPLOAD_DIR receives reassembled files; created on startup if missing.
	cfg.UploadDir = getEnvOrDefault("UPLOAD_DIR", "./uploads")

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"

	cfg.RateLimitAPI = getEnvOrDefault("RATE_LIMIT_API", "300-M")
	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "60-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// logValidatedConfig logs the validated configuration.
func logValidatedConfig(cfg *Config) {
	slog.Info("Environment configuration validated",
		"port", cfg.Port,
		"client_origin", cfg.ClientOrigin,
		"upload_dir", cfg.UploadDir,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"development_mode", cfg.DevelopmentMode,
		"rate_limit_api", cfg.RateLimitAPI,
		"rate_limit_ws_ip", cfg.RateLimitWsIP,
	)
}
