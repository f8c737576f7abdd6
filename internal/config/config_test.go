package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LUMEN_MODEL_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, 5*time.Minute, cfg.Agent.SessionTTL)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.Equal(t, 5, cfg.Agent.MaxAttachments)
	assert.Equal(t, 8000, cfg.Agent.MaxAttachChars)
	assert.False(t, cfg.ArchiveEnabled())
	assert.False(t, cfg.MirrorEnabled())
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("LUMEN_MODEL_PROVIDER", "psychic")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("LUMEN_SESSION_TTL", "five minutes")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveTTL(t *testing.T) {
	t.Setenv("LUMEN_SESSION_TTL", "-1m")

	_, err := Load()
	assert.Error(t, err)
}

func TestArchiveToggleAndDSN(t *testing.T) {
	t.Setenv("LUMEN_DB_HOST", "db.internal")
	t.Setenv("LUMEN_DB_PASSWORD", "hunter2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.ArchiveEnabled())
	assert.Equal(t,
		"host=db.internal port=5432 user=lumen password=hunter2 dbname=lumen_dev sslmode=disable",
		cfg.Database.DSN(),
	)
}
