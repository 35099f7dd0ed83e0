package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 3*time.Second, cfg.Server.LockTimeout)
	assert.Equal(t, 100, cfg.Server.AuditBufferSize)
	assert.Equal(t, "localhost", cfg.Database.Host)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TALLY_SERVER_PORT", "9999")
	t.Setenv("TALLY_DATABASE_HOST", "db.internal")
	t.Setenv("TALLY_SERVER_LOCK_TIMEOUT", "500ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 500*time.Millisecond, cfg.Server.LockTimeout)
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "secret",
		Name:     "tally",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=localhost port=5432 user=postgres password=secret dbname=tally sslmode=disable", db.DSN())
}
