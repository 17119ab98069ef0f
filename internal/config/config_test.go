package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "file::memory:")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiresIn)
	assert.Equal(t, "/static/receipts", cfg.ReceiptURLPrefix)
	assert.False(t, cfg.StrictReferenceUpdates)
	assert.Equal(t, 20, cfg.RateLimitPerMinute)
	assert.False(t, cfg.TrustProxy)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "root:1234@tcp(localhost:3306)/turnos_db")
	t.Setenv("DB_DRIVER", " MySQL ")
	t.Setenv("JWT_EXPIRES_IN", "90m")
	t.Setenv("STRICT_REFERENCE_UPDATES", "true")
	t.Setenv("RECEIPT_URL_PREFIX", "pdfs/")
	t.Setenv("TRUST_PROXY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 90*time.Minute, cfg.JWTExpiresIn)
	assert.True(t, cfg.StrictReferenceUpdates)
	assert.Equal(t, "/pdfs", cfg.ReceiptURLPrefix)
	assert.True(t, cfg.TrustProxy)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	assert.Error(t, (&Config{DBDriver: "postgres"}).Validate())
	assert.Error(t, (&Config{DBDriver: "oracle", DatabaseURL: "x"}).Validate())
	assert.NoError(t, (&Config{DBDriver: "sqlite", DatabaseURL: "turnos.db"}).Validate())
}
