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

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, StoreDriverPostgres, cfg.Slots.StoreDriver)
	assert.Equal(t, 15, cfg.Slots.MaxCapacity)
	assert.Equal(t, 5*time.Second, cfg.Slots.StoreTimeout)
	assert.Equal(t, []string{"14:00", "15:00", "16:00", "17:00", "18:00", "19:00", "20:00"}, cfg.Slots.FallbackTimeLabels)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("SLOTS_MAX_CAPACITY", "20")
	t.Setenv("SLOTS_STORE_DRIVER", "ContentStore")
	t.Setenv("SLOTS_STORE_TIMEOUT", "750ms")
	t.Setenv("CONTENT_STORE_URL", "https://cms.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Slots.MaxCapacity)
	assert.Equal(t, StoreDriverContentStore, cfg.Slots.StoreDriver)
	assert.Equal(t, 750*time.Millisecond, cfg.Slots.StoreTimeout)
	assert.Equal(t, "https://cms.example.com", cfg.ContentStore.URL)
}

func TestLoadRejectsNonPositiveCapacity(t *testing.T) {
	t.Setenv("SLOTS_MAX_CAPACITY", "0")
	t.Setenv("SLOTS_NEARLY_FULL_RATIO", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.Slots.MaxCapacity)
	assert.Equal(t, 0.8, cfg.Slots.NearlyFullRatio)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}
