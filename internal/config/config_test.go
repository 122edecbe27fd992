package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "unit-1", cfg.UnitID)
	assert.NotEmpty(t, cfg.ClientID)
	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, "America/Sao_Paulo", cfg.ClinicTimezone)
	assert.Equal(t, 10*time.Minute, cfg.ResidencyTimeout)
	assert.Equal(t, 60*time.Second, cfg.SweepInterval)
	assert.Equal(t, 20, cfg.HistoryLimit)
	assert.True(t, cfg.EnableSystemMetrics)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CLINIC_UNIT_ID", "unit-9")
	t.Setenv("CLIENT_ID", "pinned-client")
	t.Setenv("API_PORT", "9090")
	t.Setenv("RESIDENCY_TIMEOUT", "5m")
	t.Setenv("HISTORY_LIMIT", "50")
	t.Setenv("ENABLE_SYSTEM_METRICS", "false")

	cfg := Load()

	assert.Equal(t, "unit-9", cfg.UnitID)
	assert.Equal(t, "pinned-client", cfg.ClientID)
	assert.Equal(t, "9090", cfg.APIPort)
	assert.Equal(t, 5*time.Minute, cfg.ResidencyTimeout)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.False(t, cfg.EnableSystemMetrics)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("RESIDENCY_TIMEOUT", "soon")
	t.Setenv("HISTORY_LIMIT", "many")
	t.Setenv("ENABLE_SYSTEM_METRICS", "maybe")

	cfg := Load()

	assert.Equal(t, 10*time.Minute, cfg.ResidencyTimeout)
	assert.Equal(t, 20, cfg.HistoryLimit)
	assert.True(t, cfg.EnableSystemMetrics)
}
