package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port      string
	Env       string
	JWTSecret string
	JWTTTL    time.Duration

	CORSAllowedHosts []string

	DB         DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	AWS        AWSConfig
	Enrichment EnrichmentConfig
	Scan       ScanConfig
	Directory  DirectoryConfig
	Worker     WorkerConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// StorageConfig describes the S3-compatible bucket used for photo binaries.
// Supabase storage exposes the same API, so only the endpoint changes.
type StorageConfig struct {
	Region          string
	Bucket          string
	Endpoint        string
	PublicBaseURL   string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// AWSConfig contains AWS general configuration
type AWSConfig struct {
	AccessKeyID       string
	SecretAccessKey   string
	RekognitionRegion string
	LabelPhotos       bool
}

// EnrichmentConfig configures barcode enrichment providers and caching.
type EnrichmentConfig struct {
	OpenFoodFactsURL string
	UPCItemDBURL     string
	UPCItemDBKey     string
	Timeout          time.Duration
	CacheTTL         time.Duration
}

// ScanConfig holds limits for the scan-to-inventory workflow.
type ScanConfig struct {
	MaxActiveSessions int
	IdleAfter         time.Duration
	MaxGalleryPhotos  int
}

// DirectoryConfig holds limits for directory listing photos.
type DirectoryConfig struct {
	MaxPhotos int
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	CleanupInterval time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.CORSAllowedHosts = splitList(getEnv("CORS_ALLOWED_HOSTS", "localhost:3000,127.0.0.1:3000"))

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Object storage
	cfg.Storage = StorageConfig{
		Region:          getEnv("STORAGE_REGION", "us-east-1"),
		Bucket:          getEnv("STORAGE_BUCKET", "photos"),
		Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
		PublicBaseURL:   strings.TrimSuffix(getEnv("STORAGE_PUBLIC_BASE_URL", ""), "/"),
		AccessKeyID:     getEnv("STORAGE_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("STORAGE_SECRET_ACCESS_KEY", ""),
		UsePathStyle:    getEnvBool("STORAGE_USE_PATH_STYLE", true),
	}

	// AWS (Rekognition labels for photo alt text)
	cfg.AWS = AWSConfig{
		AccessKeyID:       getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		RekognitionRegion: getEnv("AWS_REKOGNITION_REGION", "us-east-1"),
		LabelPhotos:       getEnvBool("AWS_LABEL_PHOTOS", false),
	}

	cfg.Enrichment = EnrichmentConfig{
		OpenFoodFactsURL: getEnv("ENRICHMENT_OFF_URL", "https://world.openfoodfacts.org"),
		UPCItemDBURL:     getEnv("ENRICHMENT_UPC_URL", "https://api.upcitemdb.com"),
		UPCItemDBKey:     getEnv("ENRICHMENT_UPC_KEY", ""),
	}

	cfg.Scan = ScanConfig{
		MaxActiveSessions: getEnvInt("SCAN_MAX_ACTIVE_SESSIONS", 50),
		MaxGalleryPhotos:  getEnvInt("SCAN_MAX_GALLERY_PHOTOS", 11),
	}

	cfg.Directory = DirectoryConfig{
		MaxPhotos: getEnvInt("DIRECTORY_MAX_PHOTOS", 10),
	}

	// Durations
	var err error
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", "24h"); err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	if cfg.Enrichment.Timeout, err = parseDurationEnv("ENRICHMENT_TIMEOUT", "10s"); err != nil {
		return nil, fmt.Errorf("invalid ENRICHMENT_TIMEOUT: %w", err)
	}
	if cfg.Enrichment.CacheTTL, err = parseDurationEnv("ENRICHMENT_CACHE_TTL", "168h"); err != nil {
		return nil, fmt.Errorf("invalid ENRICHMENT_CACHE_TTL: %w", err)
	}
	if cfg.Scan.IdleAfter, err = parseDurationEnv("SCAN_IDLE_AFTER", "1h"); err != nil {
		return nil, fmt.Errorf("invalid SCAN_IDLE_AFTER: %w", err)
	}
	if cfg.Worker.CleanupInterval, err = parseDurationEnv("SCAN_CLEANUP_INTERVAL", "10m"); err != nil {
		return nil, fmt.Errorf("invalid SCAN_CLEANUP_INTERVAL: %w", err)
	}

	// Basic validation for DB parameters
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}

	// Validate JWT_SECRET
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set for authentication")
	}

	if cfg.Scan.MaxActiveSessions <= 0 {
		return nil, errors.New("SCAN_MAX_ACTIVE_SESSIONS must be positive")
	}
	if cfg.Directory.MaxPhotos <= 0 {
		return nil, errors.New("DIRECTORY_MAX_PHOTOS must be positive")
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
