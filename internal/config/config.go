package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

type JobsConfig struct {
	Enabled               bool
	BatchSize             int
	OrphanInterval        time.Duration
	RetentionInterval     time.Duration
	LifecycleSyncInterval time.Duration
}

type Config struct {
	Port        string
	Environment string
	DatabaseURL string

	JWTSecret         string
	JWTIssuer         string
	InternalJobSecret string

	PublicBaseURL      string
	CORSOrigins        string
	RateLimitPerMinute int

	StorageDriver string
	S3            S3Config

	UploadURLTTL    time.Duration
	ReadURLTTL      time.Duration
	OrphanTimeout   time.Duration
	RetentionPeriod time.Duration

	Jobs JobsConfig
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		JWTIssuer:         getEnv("JWT_ISSUER", "guestdrop"),
		InternalJobSecret: getEnv("INTERNAL_JOB_SECRET", ""),

		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:5173"),
		CORSOrigins:   getEnv("CORS_ORIGINS", "http://localhost:5173"),

		StorageDriver: getEnv("STORAGE_DRIVER", "s3"),
		S3: S3Config{
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			Region:          getEnv("S3_REGION", "auto"),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("S3_BUCKET", ""),
		},
	}

	var err error
	if cfg.RateLimitPerMinute, err = getInt("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return nil, err
	}
	if cfg.UploadURLTTL, err = getDuration("UPLOAD_URL_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ReadURLTTL, err = getDuration("READ_URL_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.OrphanTimeout, err = getDuration("ORPHAN_TIMEOUT", 45*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RetentionPeriod, err = getDuration("RETENTION_PERIOD", 30*24*time.Hour); err != nil {
		return nil, err
	}

	cfg.Jobs.Enabled = getEnv("JOBS_ENABLED", "false") == "true"
	if cfg.Jobs.BatchSize, err = getInt("JOB_BATCH_SIZE", 200); err != nil {
		return nil, err
	}
	if cfg.Jobs.OrphanInterval, err = getDuration("ORPHAN_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Jobs.RetentionInterval, err = getDuration("RETENTION_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.Jobs.LifecycleSyncInterval, err = getDuration("LIFECYCLE_SYNC_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.InternalJobSecret == "" {
		return fmt.Errorf("INTERNAL_JOB_SECRET is required")
	}
	switch c.StorageDriver {
	case "s3":
		if c.S3.Bucket == "" || c.S3.AccessKeyID == "" || c.S3.SecretAccessKey == "" {
			return fmt.Errorf("S3_BUCKET, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required for the s3 storage driver")
		}
	case "memory":
		if c.Environment == "production" {
			return fmt.Errorf("memory storage driver is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.OrphanTimeout < c.UploadURLTTL {
		return fmt.Errorf("ORPHAN_TIMEOUT (%s) must not be shorter than UPLOAD_URL_TTL (%s)", c.OrphanTimeout, c.UploadURLTTL)
	}
	if c.Jobs.BatchSize <= 0 {
		return fmt.Errorf("JOB_BATCH_SIZE must be positive")
	}
	return nil
}

// AllowedOrigins returns CORS origins in the comma-joined form fiber expects.
func (c *Config) AllowedOrigins() string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
