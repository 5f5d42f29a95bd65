package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            int
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ChatLogBuffer   string
	ChatLogKey      string
	FlushThreshold  int
	FlushInterval   time.Duration
	NatsURL         string
	NatsToken       string
	LogLevel        string
	AnthropicAPIKey string
	AnthropicModel  string
	SlackBotToken   string
	SlackChannel    string
	APIToken        string
	SampleTokens    int
	PreviewChars    int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; variables already set win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:            envInt("LABGUARD_PORT", 8760),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		RedisAddr:       envStr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   envStr("REDIS_PASSWORD", ""),
		RedisDB:         envInt("REDIS_DB", 0),
		ChatLogBuffer:   envStr("CHAT_LOG_BUFFER", "redis"),
		ChatLogKey:      envStr("CHAT_LOG_REDIS_KEY", "chat_logs_buffer"),
		FlushThreshold:  envInt("CHAT_LOG_FLUSH_THRESHOLD", 10),
		FlushInterval:   envDuration("CHAT_LOG_FLUSH_INTERVAL", 60*time.Second),
		NatsURL:         envStr("NATS_URL", ""),
		NatsToken:       envStr("NATS_TOKEN", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("LABGUARD_MODEL", "claude-sonnet-4-20250514"),
		SlackBotToken:   envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:    envStr("SLACK_ALERTS_CHANNEL", ""),
		APIToken:        envStr("LABGUARD_API_TOKEN", ""),
		SampleTokens:    envInt("SEGMENT_SAMPLE_TOKENS", 6000),
		PreviewChars:    envInt("SEGMENT_PREVIEW_CHARS", 300),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration accepts Go duration strings ("90s", "2m") or a bare number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
