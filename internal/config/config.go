package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Server configuration
	Port string

	// Understanding service (transcript + audio job endpoints)
	VoiceServiceURL    string
	VoiceServiceAPIKey string
	Language           string
	Timezone           string

	// Live recognizer (streaming ASR over WebSocket)
	LiveASRURL    string
	SampleRate    int
	EnableLiveASR bool

	// Job polling
	PollInterval time.Duration
	PollTimeout  time.Duration

	// Run history
	HistoryPath        string
	HistoryMaxRecords  int
	HistoryExpiryHours int

	// Capture archive (optional, disabled without credentials)
	ArchiveAccessKey string
	ArchiveSecretKey string
	ArchiveBucket    string
	ArchiveDomain    string
}

// Load reads configuration from environment variables, with an optional .env.
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		VoiceServiceURL:    getEnv("VOICE_SERVICE_URL", ""),
		VoiceServiceAPIKey: getEnv("VOICE_SERVICE_API_KEY", ""),
		Language:           getEnv("VOICE_LANGUAGE", "en"),
		Timezone:           getEnv("VOICE_TIMEZONE", "UTC"),
		LiveASRURL:         getEnv("LIVE_ASR_URL", ""),
		SampleRate:         getEnvInt("LIVE_ASR_SAMPLE_RATE", 16000),
		EnableLiveASR:      getEnvBool("ENABLE_LIVE_ASR", true),
		PollInterval:       getEnvDuration("POLL_INTERVAL", 500*time.Millisecond),
		PollTimeout:        getEnvDuration("POLL_TIMEOUT", 30*time.Second),
		HistoryPath:        getEnv("HISTORY_PATH", "./data/history"),
		HistoryMaxRecords:  getEnvInt("HISTORY_MAX_RECORDS", 100),
		HistoryExpiryHours: getEnvInt("HISTORY_EXPIRY_HOURS", 72),
		ArchiveAccessKey:   getEnv("ARCHIVE_ACCESS_KEY", ""),
		ArchiveSecretKey:   getEnv("ARCHIVE_SECRET_KEY", ""),
		ArchiveBucket:      getEnv("ARCHIVE_BUCKET", "lifetrack-captures"),
		ArchiveDomain:      getEnv("ARCHIVE_DOMAIN", ""),
	}

	if cfg.VoiceServiceURL == "" {
		return nil, fmt.Errorf("VOICE_SERVICE_URL is required")
	}

	if err := os.MkdirAll(cfg.HistoryPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	return cfg, nil
}

// ArchiveEnabled reports whether capture archiving is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveAccessKey != "" && c.ArchiveSecretKey != ""
}

// Helper functions for getting environment variables with defaults

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
