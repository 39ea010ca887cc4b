// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAPITimeout    = 30 * time.Second
	defaultChatTimeout   = 5 * time.Minute
	defaultMaxUploadSize = 32 << 20 // 32MB
)

// Config holds all relay server configuration.
type Config struct {
	Port               string
	FrontendURL        string
	BackendAPI         string
	BackendMessagePath string
	APITimeout         time.Duration
	MaxUploadBytes     int64
	CORSOrigins        []string
	LogLevel           slog.Level
	ConversationLog    ConversationLogConfig
}

// ConversationLogConfig controls NDJSON logging of relayed turns.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// ClientConfig holds terminal chat client configuration.
type ClientConfig struct {
	RelayURL    string
	ChatTimeout time.Duration
	LogFile     string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	maxUpload := int64(getEnvInt("MAX_UPLOAD_BYTES", defaultMaxUploadSize))
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadSize
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		BackendAPI:         strings.TrimRight(getEnv("BACKEND_API", ""), "/"),
		BackendMessagePath: getEnv("BACKEND_MESSAGE_PATH", "/Sseus/message"),
		APITimeout:         getEnvMillis("API_TIMEOUT", defaultAPITimeout),
		MaxUploadBytes:     maxUpload,
		CORSOrigins:        getEnvList("CORS_ORIGINS", []string{"*"}),
		LogLevel:           parseLevel(getEnv("LOG_LEVEL", "info")),
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", false),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.BackendAPI == "" {
		return fmt.Errorf("BACKEND_API cannot be empty")
	}
	if !strings.HasPrefix(c.BackendMessagePath, "/") {
		return fmt.Errorf("BACKEND_MESSAGE_PATH must start with /")
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	return nil
}

// BackendURL returns the full address of the backend message endpoint.
func (c *Config) BackendURL() string {
	return c.BackendAPI + c.BackendMessagePath
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// LoadClient reads terminal client configuration from environment variables.
// The chat deadline is never shorter than the relay's own budget, so a relay
// call that is still within API_TIMEOUT is not aborted client-side.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{
		RelayURL:    strings.TrimRight(getEnv("RELAY_URL", "http://localhost:8080"), "/"),
		ChatTimeout: getEnvMillis("CHAT_TIMEOUT", defaultChatTimeout),
		LogFile:     getEnv("CHAT_LOG_FILE", ""),
	}

	relayBudget := getEnvMillis("API_TIMEOUT", defaultAPITimeout)
	if cfg.ChatTimeout < relayBudget {
		cfg.ChatTimeout = relayBudget
	}

	if cfg.RelayURL == "" {
		return nil, fmt.Errorf("invalid configuration: RELAY_URL cannot be empty")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvMillis reads a duration expressed in milliseconds.
func getEnvMillis(key string, fallback time.Duration) time.Duration {
	ms := getEnvInt(key, -1)
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
