package config

import (
	"encoding/hex"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Security settings
	JWTSecret          string
	PANEncryptionKey   []byte
	AccessTokenExpiry  time.Duration
	MaxUploadSizeBytes int64

	// CORS
	AllowedOrigins []string

	// Bootstrap API client (optional, seeded only when the table is empty)
	BootstrapClientID        string
	BootstrapClientSecret    string
	BootstrapClientRevealPAN bool
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	// 1. Try loading from the current directory (standard behavior)
	errEnv := godotenv.Load()

	// 2. If not found, try loading from the parent directory (common when running from /backend)
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}

	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	// --- Security & Tokens (Secrets) ---
	jwtSecret := getRequiredEnv("JWT_SECRET")
	panKey := getPANEncryptionKey("PAN_ENCRYPTION_KEY")

	// --- Token Expiry Durations ---
	accessTokenExpiry := getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 60*time.Minute)

	// --- File Size Limits ---
	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "1048576") // 1MB default
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 1MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 1024 * 1024
	}

	// --- Populate the Global Config Struct ---
	Cfg = &AppConfig{
		// Core
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./isovault.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		// Security
		JWTSecret:          jwtSecret,
		PANEncryptionKey:   panKey,
		AccessTokenExpiry:  accessTokenExpiry,
		MaxUploadSizeBytes: maxUploadSizeBytes,

		// CORS
		AllowedOrigins: getCommaSeparatedEnv("ALLOWED_ORIGINS"),

		// Bootstrap client
		BootstrapClientID:        getEnv("BOOTSTRAP_CLIENT_ID", ""),
		BootstrapClientSecret:    getEnv("BOOTSTRAP_CLIENT_SECRET", ""),
		BootstrapClientRevealPAN: getEnvAsBool("BOOTSTRAP_CLIENT_REVEAL_PAN", false),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getRequiredEnv retrieves an environment variable or terminates the application if not set.
func getRequiredEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set or is empty. Application cannot start securely.", key)
	}
	return value
}

// getPANEncryptionKey retrieves and decodes the hex-encoded 256-bit key used
// to encrypt account numbers at rest. The key is read-only after startup;
// the application refuses to start with a missing or malformed key.
func getPANEncryptionKey(key string) []byte {
	hexKey := getRequiredEnv(key)
	decoded, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		log.Fatalf("FATAL: %s must be hex-encoded: %v", key, err)
	}
	if len(decoded) != 32 {
		log.Fatalf("FATAL: %s must decode to 32 bytes (AES-256), got %d bytes.", key, len(decoded))
	}
	return decoded
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a fallback.
func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}

// getCommaSeparatedEnv retrieves and parses a comma-separated list.
func getCommaSeparatedEnv(key string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return []string{}
	}
	values := strings.Split(valueStr, ",")
	for i, v := range values {
		values[i] = strings.TrimSpace(v)
	}
	return values
}
