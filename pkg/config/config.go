package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Import   ImportConfig
	Storage  StorageConfig
	OCR      OCRConfig
	GigaChat GigaChatConfig
	Logger   LoggerConfig
}

type LoggerConfig struct {
	Level string
	// Format is "json" or "console".
	Format string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	// Migrate applies the embedded schema migrations on startup.
	Migrate bool
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

type JWTConfig struct {
	SecretKey  string
	Expiration time.Duration
	RefreshExp time.Duration
}

const (
	StagingBackendPostgres = "postgres"
	StagingBackendMemory   = "memory"
)

type ImportConfig struct {
	DefaultCurrency   string
	MaxUploadBytes    int
	StagingBackend    string
	CommitWaitTimeout time.Duration
	LedgerRetries     int
	PreviewRows       int
}

const (
	StorageBackendLocal = "local"
	StorageBackendGCS   = "gcs"
)

type StorageConfig struct {
	Backend   string
	LocalDir  string
	GCSBucket string
}

type OCRConfig struct {
	Languages []string
}

type GigaChatConfig struct {
	Enabled            bool
	APIKey             string
	Scope              string
	Model              string
	InsecureSkipVerify bool
}

func Load() (*Config, error) {
	// .env is optional; plain environment variables work too (Docker/K8s)
	for _, envFile := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	readTimeout, _ := strconv.Atoi(getEnv("SERVER_READ_TIMEOUT", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("SERVER_WRITE_TIMEOUT", "30"))
	jwtExp, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	refreshExp, _ := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168"))
	maxUploadMB, _ := strconv.Atoi(getEnv("IMPORT_MAX_UPLOAD_MB", "10"))
	ledgerRetries, _ := strconv.Atoi(getEnv("IMPORT_LEDGER_RETRIES", "3"))
	previewRows, _ := strconv.Atoi(getEnv("IMPORT_PREVIEW_ROWS", "50"))

	commitWait, err := time.ParseDuration(getEnv("IMPORT_COMMIT_WAIT_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMPORT_COMMIT_WAIT_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  time.Duration(readTimeout) * time.Second,
			WriteTimeout: time.Duration(writeTimeout) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "fintrack"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Migrate:  getEnv("DB_MIGRATE", "true") == "true",
		},
		JWT: JWTConfig{
			SecretKey:  getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
			Expiration: time.Duration(jwtExp) * time.Hour,
			RefreshExp: time.Duration(refreshExp) * time.Hour,
		},
		Import: ImportConfig{
			DefaultCurrency:   strings.ToUpper(getEnv("IMPORT_DEFAULT_CURRENCY", "INR")),
			MaxUploadBytes:    maxUploadMB * 1024 * 1024,
			StagingBackend:    getEnv("IMPORT_STAGING_BACKEND", StagingBackendPostgres),
			CommitWaitTimeout: commitWait,
			LedgerRetries:     ledgerRetries,
			PreviewRows:       previewRows,
		},
		Storage: StorageConfig{
			Backend:   getEnv("STORAGE_BACKEND", StorageBackendLocal),
			LocalDir:  getEnv("STORAGE_LOCAL_DIR", "storage"),
			GCSBucket: getEnv("STORAGE_GCS_BUCKET", ""),
		},
		OCR: OCRConfig{
			Languages: splitList(getEnv("OCR_LANGUAGES", "eng")),
		},
		GigaChat: GigaChatConfig{
			Enabled:            getEnv("GIGACHAT_ENABLED", "false") == "true",
			APIKey:             getEnv("GIGACHAT_API_KEY", ""),
			Scope:              getEnv("GIGACHAT_SCOPE", "GIGACHAT_API_PERS"),
			Model:              getEnv("GIGACHAT_MODEL", "GigaChat"),
			InsecureSkipVerify: getEnv("GIGACHAT_INSECURE_SKIP_VERIFY", "false") == "true",
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Import.StagingBackend {
	case StagingBackendPostgres, StagingBackendMemory:
	default:
		return fmt.Errorf("unknown IMPORT_STAGING_BACKEND %q", c.Import.StagingBackend)
	}

	switch c.Storage.Backend {
	case StorageBackendLocal:
	case StorageBackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("STORAGE_GCS_BUCKET is required for the gcs storage backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	if len(c.Import.DefaultCurrency) != 3 {
		return fmt.Errorf("IMPORT_DEFAULT_CURRENCY must be a three-letter code, got %q", c.Import.DefaultCurrency)
	}
	if c.Import.MaxUploadBytes <= 0 {
		return fmt.Errorf("IMPORT_MAX_UPLOAD_MB must be positive")
	}
	if c.Import.LedgerRetries < 0 {
		c.Import.LedgerRetries = 0
	}
	if c.Import.PreviewRows <= 0 {
		c.Import.PreviewRows = 50
	}
	if c.GigaChat.Enabled && c.GigaChat.APIKey == "" {
		return fmt.Errorf("GIGACHAT_API_KEY is required when GIGACHAT_ENABLED=true")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
