package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PORT", "3001")
	t.Setenv("APP_ENV", "development")
	t.Setenv("API_BASE_URL", "http://api.local/")
	t.Setenv("API_TIMEOUT_SECONDS", "15")
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("SESSION_COOKIE_NAME", "medflow_auth")
	t.Setenv("SESSION_COOKIE_MAX_AGE", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "http://api.local", cfg.API.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, SessionStoreMemory, cfg.Session.Store)
	assert.Equal(t, "medflow_auth", cfg.Session.CookieName)
	assert.Contains(t, cfg.Database.DSN, "@tcp(")
}

func TestLoadConfig_RejectsBadTimeout(t *testing.T) {
	t.Setenv("API_TIMEOUT_SECONDS", "soon")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "API_TIMEOUT_SECONDS")

	t.Setenv("API_TIMEOUT_SECONDS", "0")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "must be positive")
}

func TestLoadConfig_RejectsUnknownStore(t *testing.T) {
	t.Setenv("API_TIMEOUT_SECONDS", "15")
	t.Setenv("SESSION_COOKIE_MAX_AGE", "0")
	t.Setenv("SESSION_STORE", "redis")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "SESSION_STORE")
}

func TestLoadConfig_MySQLStore(t *testing.T) {
	t.Setenv("API_TIMEOUT_SECONDS", "15")
	t.Setenv("SESSION_COOKIE_MAX_AGE", "0")
	t.Setenv("SESSION_STORE", "MySQL")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "sessions")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, SessionStoreMySQL, cfg.Session.Store)
	assert.Contains(t, cfg.Database.DSN, "tcp(db:")
	assert.Contains(t, cfg.Database.DSN, "/sessions?")
}
