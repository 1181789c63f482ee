package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverS3    = "s3"
	StorageDriverLocal = "local"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	DataDir string // downloads and persisted session live here

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Auth
	JWTSecret              string
	JWTExpiry              time.Duration
	TokenEmailVerifyExpiry time.Duration
	AuthAutoConfirm        bool   // skip the email confirmation step (local development)
	DeepLinkScheme         string // custom URI scheme used for the auth callback

	// Email
	EmailFrom    string
	ResendAPIKey string

	// Sync
	RefreshInterval time.Duration // periodic refresh while foregrounded
	RedisURL        string        // optional realtime fan-out between processes

	// Observability (optional)
	SentryDSN string
	LogFile   string // optional rotating log file

	// Storage (S3-compatible: MinIO, AWS S3, Cloudflare R2, DigitalOcean Spaces, etc.)
	StorageDriver    string
	LocalStoragePath string
	LocalStorageURL  string
	S3Region         string
	S3Bucket         string
	S3AccessKey      string
	S3SecretKey      string
	S3Endpoint       string        // Optional: for S3-compatible services (MinIO, DO Spaces, R2, etc.)
	S3PresignExpiry  time.Duration // Expiry for download links - default: 1 hour
	ObjectsRateLimit int           // requests per minute per IP for serve-objects
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	dataDir := envString("DATA_DIR", defaultDataDir())

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "Campus Connect"),
		AppEnv:  envString("APP_ENV", "development"),
		DataDir: dataDir,

		// Database
		DBDriver:     envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION", filepath.Join(dataDir, "campus.db")+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"),

		// Auth
		JWTSecret:              envRequired("JWT_SECRET"),
		JWTExpiry:              envDuration("JWT_EXPIRY", 168*time.Hour),               // 7 days
		TokenEmailVerifyExpiry: envDuration("TOKEN_EMAIL_VERIFY_EXPIRY", 24*time.Hour), // 24 hours
		AuthAutoConfirm:        envBool("AUTH_AUTO_CONFIRM", false),
		DeepLinkScheme:         envString("DEEP_LINK_SCHEME", "campusconnect"),

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		// Sync
		RefreshInterval: envDuration("REFRESH_INTERVAL", 30*time.Second),
		RedisURL:        envString("REDIS_URL", ""),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),
		LogFile:   envString("LOG_FILE", ""),

		// Storage
		StorageDriver:    envString("STORAGE_DRIVER", StorageDriverS3),
		LocalStoragePath: envString("LOCAL_STORAGE_PATH", filepath.Join(dataDir, "objects")),
		LocalStorageURL:  envString("LOCAL_STORAGE_URL", "http://localhost:9000/objects"),
		S3Endpoint:       envString("S3_ENDPOINT", ""), // Optional: for non-AWS providers
		S3PresignExpiry:  envDuration("S3_PRESIGN_EXPIRY", time.Hour),
		ObjectsRateLimit: envInt("OBJECTS_RATE_LIMIT", 600),
	}

	// S3 credentials are only required when the bucket is the object store
	if cfg.StorageDriver == StorageDriverS3 {
		cfg.S3Region = envRequired("S3_REGION")
		cfg.S3Bucket = envRequired("S3_BUCKET")
		cfg.S3AccessKey = envRequired("S3_ACCESS_KEY")
		cfg.S3SecretKey = envRequired("S3_SECRET_KEY")
	}

	// Production: validate required services
	if cfg.IsProduction() {
		validateProduction(cfg)
	}

	return cfg
}

// validateProduction ensures all required services are configured for production deployments.
// Development allows email to use the log mode for easier local testing.
func validateProduction(cfg *Config) {
	if cfg.ResendAPIKey == "" {
		slog.Error("production deployment requires RESEND_API_KEY",
			"hint", "set APP_ENV=development for local testing with email log mode")
		os.Exit(1)
	}
	if cfg.AuthAutoConfirm {
		slog.Error("AUTH_AUTO_CONFIRM must not be enabled in production")
		os.Exit(1)
	}
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".data"
	}
	return filepath.Join(dir, "campus")
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config invalid bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func envRequired(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("config required env var missing", "key", key)
	os.Exit(1)
	return ""
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// DownloadDir is the app-private directory holding offline copies of library files.
func (c *Config) DownloadDir() string {
	return filepath.Join(c.DataDir, "downloads")
}

// SessionFile is where the signed-in session and pending PKCE verifier are persisted.
func (c *Config) SessionFile() string {
	return filepath.Join(c.DataDir, "session.json")
}
