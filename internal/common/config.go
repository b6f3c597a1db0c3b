package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Queue    QueueConfig
	OCR      OCRConfig
	Extract  ExtractConfig
	Routing  RoutingConfig
	Vendor   VendorConfig
	Intake   IntakeConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr        string
	MetricsAddr string
}

// QueueConfig holds NATS configuration
type QueueConfig struct {
	URL     string
	Subject string
}

// OCRConfig holds recognition engine configuration
type OCRConfig struct {
	Tesseract     string
	Pdftoppm      string
	TesseractLang string
	TessdataDir   string
	DPI           int
	MaxPages      int
	EngineTimeout time.Duration
	CloudURL      string
	CloudAPIKey   string
}

// ExtractConfig holds field-extraction configuration
type ExtractConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// RoutingConfig holds the auto-approval thresholds.
type RoutingConfig struct {
	AutoApproveThreshold float64
	HighPriorityBelow    float64
}

// VendorConfig holds identity-resolution tuning.
type VendorConfig struct {
	SimilarityThreshold float64
}

// IntakeConfig holds conversational intake tuning.
type IntakeConfig struct {
	SessionTTL      time.Duration
	DuplicateWindow time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			Addr:        getEnv("HTTP_ADDR", ":8080"),
			MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		},
		Queue: QueueConfig{
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Subject: getEnv("NATS_SUBJECT", "docproc.events"),
		},
		OCR: OCRConfig{
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 5),
			EngineTimeout: getEnvAsDuration("OCR_ENGINE_TIMEOUT", 10*time.Second),
			CloudURL:      getEnv("CLOUD_VISION_URL", ""),
			CloudAPIKey:   getEnv("CLOUD_VISION_API_KEY", ""),
		},
		Extract: ExtractConfig{
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Routing: RoutingConfig{
			AutoApproveThreshold: getEnvAsFloat64("AUTO_APPROVE_THRESHOLD", 0.95),
			HighPriorityBelow:    getEnvAsFloat64("HIGH_PRIORITY_BELOW", 0.85),
		},
		Vendor: VendorConfig{
			SimilarityThreshold: getEnvAsFloat64("VENDOR_SIMILARITY_THRESHOLD", 0.85),
		},
		Intake: IntakeConfig{
			SessionTTL:      getEnvAsDuration("SESSION_TTL", 30*time.Minute),
			DuplicateWindow: getEnvAsDuration("DUPLICATE_WINDOW", 24*time.Hour),
		},
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Routing.AutoApproveThreshold <= 0 || c.Routing.AutoApproveThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "AUTO_APPROVE_THRESHOLD must be in (0,1]", ErrInvalidInput)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
