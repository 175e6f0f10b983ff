package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL         = "http://localhost:8000"
	DefaultRequestTimeout = 30 * time.Second
	DefaultChatTimeout    = 60 * time.Second
)

type Config struct {
	APIURL       string
	HTTPPort     string
	DatabaseURL  string
	LogLevel     string
	GeminiAPIKey string
	JWTSecret    string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	CacheTTL       time.Duration
	RequestTimeout time.Duration
	ChatTimeout    time.Duration
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	AppConfig = FromEnv()
}

// FromEnv builds a Config from the current process environment without
// touching the .env file.
func FromEnv() Config {
	apiURL := getEnv("API_URL", "")
	if apiURL == "" {
		// The web frontend exposed the origin under this name.
		apiURL = getEnv("NEXT_PUBLIC_API_URL", "")
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	return Config{
		APIURL:             strings.TrimRight(apiURL, "/"),
		HTTPPort:           getEnv("HTTP_PORT", "8000"),
		DatabaseURL:        getEnv("DATABASE_URL", "ai_learning_tracker.db"),
		LogLevel:           strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8085/callback"),
		CacheTTL:           time.Duration(getEnvAsInt("CACHE_TTL_HOURS", 24)) * time.Hour,
		RequestTimeout:     time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		ChatTimeout:        time.Duration(getEnvAsInt("CHAT_TIMEOUT_SECONDS", 60)) * time.Second,
	}
}

// ValidateServer checks the settings the API server cannot start without.
func (c Config) ValidateServer() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	return nil
}

// ValidateSignIn checks the settings needed for Google sign-in.
func (c Config) ValidateSignIn() error {
	if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required for sign-in")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
