package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Should apply defaults", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "")
		t.Setenv("MARKETPLACE_TIMEOUT", "")
		t.Setenv("APP_ENV", "development")
		t.Setenv("JWT_SECRET", "")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, BackendPostgres, cfg.Store.Backend)
		assert.Equal(t, 30*time.Second, cfg.Marketplace.Timeout)
		assert.Equal(t, "https://prod.your-api-server.com", cfg.Marketplace.BaseURL)
		assert.NotEmpty(t, cfg.JWT.Secret)
		assert.Contains(t, cfg.Database.URL, "postgres://")
	})

	t.Run("Should accept seconds for durations", func(t *testing.T) {
		t.Setenv("MARKETPLACE_TIMEOUT", "12")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 12*time.Second, cfg.Marketplace.Timeout)
	})

	t.Run("Should reject unknown backend", func(t *testing.T) {
		t.Setenv("STORE_BACKEND", "mongo")
		_, err := Load()
		assert.ErrorContains(t, err, "STORE_BACKEND")
	})

	t.Run("Should require jwt secret in production", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})
}
