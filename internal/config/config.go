package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreMySQL  = "mysql"
)

// Config holds all configuration for the front-end server
type Config struct {
	Port        string
	Origin      string
	Environment string
	LogLevel    string
	API         APIConfig
	Session     SessionConfig
	Database    DatabaseConfig
}

// APIConfig describes the remote patient API
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SessionConfig controls how browser sessions are stored and named
type SessionConfig struct {
	CookieName   string
	Store        string
	CookieMaxAge int
}

// DatabaseConfig holds database connection details for the durable session store
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// IsDevelopment reports whether the server runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig loads configuration from environment variables, reading a .env
// file first when one is present.
func LoadConfig() (*Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "medflow"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	timeoutSeconds, err := strconv.Atoi(getEnv("API_TIMEOUT_SECONDS", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_TIMEOUT_SECONDS: %w", err)
	}
	if timeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid API_TIMEOUT_SECONDS: must be positive, got %d", timeoutSeconds)
	}

	cookieMaxAge, err := strconv.Atoi(getEnv("SESSION_COOKIE_MAX_AGE", "0")) // 0 = browser session
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_COOKIE_MAX_AGE: %w", err)
	}

	store := strings.ToLower(getEnv("SESSION_STORE", SessionStoreMemory))
	if store != SessionStoreMemory && store != SessionStoreMySQL {
		return nil, fmt.Errorf("invalid SESSION_STORE %q: want %q or %q", store, SessionStoreMemory, SessionStoreMySQL)
	}

	return &Config{
		Port:        getEnv("PORT", "3001"),
		Origin:      getEnv("ORIGIN", "http://localhost:5173"),
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		API: APIConfig{
			BaseURL: strings.TrimRight(getEnv("API_BASE_URL", "https://medical-record-api-ta4kt.ondigitalocean.app"), "/"),
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
		Session: SessionConfig{
			CookieName:   getEnv("SESSION_COOKIE_NAME", "medflow_auth"),
			Store:        store,
			CookieMaxAge: cookieMaxAge,
		},
		Database: dbConfig,
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
