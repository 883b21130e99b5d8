package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ThumbnailConfig controls the preview rendering pipeline.
type ThumbnailConfig struct {
	DPI         int
	JPEGQuality int
}

// UploadConfig bounds what the service accepts.
type UploadConfig struct {
	MaxSizeMB       int
	MaxMergeSources int
}

// QueueConfig defines queue connectivity and names.
type QueueConfig struct {
	RedisURL     string
	Stream       string
	Group        string
	PollInterval time.Duration
}

// SessionConfig controls the redis-backed session store.
type SessionConfig struct {
	RedisURL string
	TTL      time.Duration
}

// SaveConfig controls destination acquisition for exported documents. A
// non-empty password turns on payload encryption for uploaded exports.
type SaveConfig struct {
	S3Bucket   string
	S3Prefix   string
	S3Password string
}

// ConverterConfig controls the LibreOffice transcoder.
type ConverterConfig struct {
	Enabled    bool
	Port       int
	MaxWorkers int
	Timeout    time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Port      string
	Logging   LoggingConfig
	Axiom     AxiomConfig
	Thumbnail ThumbnailConfig
	Upload    UploadConfig
	Queue     QueueConfig
	Session   SessionConfig
	Save      SaveConfig
	Converter ConverterConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Port = getEnv("PORT", "8080")

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/pagedesk.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_pagedesk",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	// Thumbnail defaults: previews are deliberately low fidelity.
	cfg.Thumbnail = ThumbnailConfig{
		DPI:         parseInt(getEnv("THUMBNAIL_DPI", "36"), 36),
		JPEGQuality: parseInt(getEnv("THUMBNAIL_JPEG_QUALITY", "70"), 70),
	}

	cfg.Upload = UploadConfig{
		MaxSizeMB:       parseInt(getEnv("UPLOAD_MAX_SIZE_MB", "100"), 100),
		MaxMergeSources: parseInt(getEnv("UPLOAD_MAX_MERGE_SOURCES", "20"), 20),
	}

	// Queue defaults
	cfg.Queue = QueueConfig{
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379"),
		Stream:       getEnv("QUEUE_STREAM", "jobs:thumbnails"),
		Group:        getEnv("QUEUE_GROUP", "workers:thumbnails"),
		PollInterval: parseDuration(getEnv("QUEUE_POLL_INTERVAL", "100ms"), 100*time.Millisecond),
	}

	cfg.Session = SessionConfig{
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),
		TTL:      parseDuration(getEnv("SESSION_TTL", "2h"), 2*time.Hour),
	}

	cfg.Save = SaveConfig{
		S3Bucket:   getEnv("SAVE_S3_BUCKET", ""),
		S3Prefix:   getEnv("SAVE_S3_PREFIX", "exports"),
		S3Password: getEnv("SAVE_S3_PASSWORD", ""),
	}

	cfg.Converter = ConverterConfig{
		Enabled:    parseBool(getEnv("CONVERTER_ENABLED", "true")),
		Port:       parseInt(getEnv("CONVERTER_PORT", "2002"), 2002),
		MaxWorkers: parseInt(getEnv("CONVERTER_MAX_WORKERS", "2"), 2),
		Timeout:    parseDuration(getEnv("CONVERTER_TIMEOUT", "60s"), 60*time.Second),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
