package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DB        DBConfig
	MinIO     MinIOConfig
	Server    ServerConfig
	Gemini    GeminiConfig
	Session   SessionConfig
	Admin     AdminConfig
	Quota     QuotaConfig
	Media     MediaConfig
	MediaAuth MediaAuthConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type ServerConfig struct {
	Port           string
	AllowedOrigins string
}

type GeminiConfig struct {
	APIKey       string
	BaseURL      string
	ImageModel   string
	VideoModel   string
	MusicModel   string
	Timeout      time.Duration
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// AdminConfig bootstraps the first admin account from the environment so a
// fresh deployment is reachable without manual database edits.
type AdminConfig struct {
	Email    string
	Password string
}

type QuotaConfig struct {
	DefaultImageLimit int
	DefaultVideoLimit int
	DefaultEditLimit  int
}

type MediaConfig struct {
	RetentionDays int
	SweepInterval time.Duration
}

// MediaAuthConfig signs the short-lived tokens embedded in media URLs,
// which browsers fetch without an Authorization header.
type MediaAuthConfig struct {
	Secret string
	TTL    time.Duration
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "mediagen"),
			Password: getEnv("DB_PASSWORD", "mediagen_secret"),
			Name:     getEnv("DB_NAME", "mediagen"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "mediagen"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "mediagen_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "mediagen"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000"),
		},
		Gemini: GeminiConfig{
			APIKey:       getEnv("GEMINI_API_KEY", ""),
			BaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			ImageModel:   getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
			VideoModel:   getEnv("GEMINI_VIDEO_MODEL", "veo-3.1-fast-generate-preview"),
			MusicModel:   getEnv("GEMINI_MUSIC_MODEL", "lyria-realtime-exp"),
			Timeout:      getEnvAsDuration("GEMINI_TIMEOUT", 2*time.Minute),
			PollInterval: getEnvAsDuration("GEMINI_POLL_INTERVAL", 5*time.Second),
			PollTimeout:  getEnvAsDuration("GEMINI_POLL_TIMEOUT", 10*time.Minute),
		},
		Session: SessionConfig{
			TTL:           getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 1*time.Hour),
		},
		Admin: AdminConfig{
			Email:    strings.ToLower(strings.TrimSpace(getEnv("ADMIN_EMAIL", ""))),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Quota: QuotaConfig{
			DefaultImageLimit: getEnvAsInt("QUOTA_DEFAULT_IMAGE", 100),
			DefaultVideoLimit: getEnvAsInt("QUOTA_DEFAULT_VIDEO", 50),
			DefaultEditLimit:  getEnvAsInt("QUOTA_DEFAULT_EDIT", 100),
		},
		Media: MediaConfig{
			RetentionDays: getEnvAsInt("MEDIA_RETENTION_DAYS", 30),
			SweepInterval: getEnvAsDuration("MEDIA_SWEEP_INTERVAL", 6*time.Hour),
		},
		MediaAuth: MediaAuthConfig{
			Secret: getEnv("MEDIA_TOKEN_SECRET", "change-me-in-production"),
			TTL:    getEnvAsDuration("MEDIA_TOKEN_TTL", 15*time.Minute),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
