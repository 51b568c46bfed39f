package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "TMDB_API_KEY", "REDIS_ADDR", "DOCUMENT_ID", "IDENTITY_MODE",
		"SWITCH_SETTLE_DELAY", "DETACH_TIMEOUT", "PLANNING_SYNC_MODE", "CORS_ORIGINS",
		"CATALOG_RATE_LIMIT",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "5007", cfg.Port)
	assert.Equal(t, "", cfg.TMDBAPIKey)
	assert.Equal(t, "https://api.themoviedb.org/3", cfg.TMDBBaseURL)
	assert.Equal(t, "movie-night-planner", cfg.DocumentID)
	assert.Equal(t, "pool", cfg.IdentityMode)
	assert.Equal(t, 100*time.Millisecond, cfg.SwitchSettleDelay)
	assert.Equal(t, 2*time.Second, cfg.DetachTimeout)
	assert.Equal(t, "replace", cfg.PlanningSyncMode)
	assert.Equal(t, float64(20), cfg.CatalogRateLimit)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("SWITCH_SETTLE_DELAY", "250ms")
	t.Setenv("PLANNING_SYNC_MODE", "cas")
	t.Setenv("CORS_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("REDIS_DB", "3")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.SwitchSettleDelay)
	assert.Equal(t, "cas", cfg.PlanningSyncMode)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("DETACH_TIMEOUT", "soon")
	t.Setenv("CATALOG_RATE_LIMIT", "-1")

	cfg := Load()

	assert.Equal(t, 2*time.Second, cfg.DetachTimeout)
	assert.Equal(t, float64(20), cfg.CatalogRateLimit)
}
