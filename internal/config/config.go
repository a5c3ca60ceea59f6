package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// VaultConfig holds the encrypted document vault settings.
// EncryptionKeyHex must decode to exactly 32 raw bytes; startup fails fast
// otherwise. The key is supplied out of band and never stored alongside data.
type VaultConfig struct {
	EncryptionKeyHex  string
	MaxUploadBytes    int64
	OpTimeout         time.Duration
	RequireUploadAuth bool
}

// AuthConfig holds bearer-token and credential settings.
type AuthConfig struct {
	JWTSecret   string
	TokenTTL    time.Duration
	VerifyTTL   time.Duration
	BcryptCost  int
	FrontendURL string
}

// SMTPConfig holds outbound notification mail settings. When Host is empty
// the application falls back to a log-only notifier.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	BaseURL  string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost       string
	Port          string
	RateLimitsOff bool
	Database      DatabaseConfig
	MinIO         MinIOConfig
	Vault         VaultConfig
	Auth          AuthConfig
	SMTP          SMTPConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:       getEnv("APP_HOST", "localhost:8080"),
		Port:          getEnv("PORT", "8080"), // default only for non-sensitive value
		RateLimitsOff: getEnvBool("RATE_LIMIT_DISABLED", false),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Vault: VaultConfig{
			EncryptionKeyHex:  getEnv("ENCRYPTION_KEY", ""),
			MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_BYTES", 20<<20)),
			OpTimeout:         time.Duration(getEnvInt("VAULT_OP_TIMEOUT_SEC", 30)) * time.Second,
			RequireUploadAuth: getEnvBool("REQUIRE_UPLOAD_AUTH", false),
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("JWT_SECRET", ""),
			TokenTTL:    time.Duration(getEnvInt("TOKEN_TTL_HOURS", 8)) * time.Hour,
			VerifyTTL:   time.Duration(getEnvInt("VERIFY_TTL_HOURS", 24)) * time.Hour,
			BcryptCost:  getEnvInt("BCRYPT_COST", 12),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", ""),
			BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),
		},
	}
}

// Validate checks the settings the process cannot run without.
func (c *AppConfig) Validate() error {
	if c.Vault.EncryptionKeyHex == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Vault.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
