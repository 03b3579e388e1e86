package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 2*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, []string{".xlsx", ".xlsm", ".csv"}, cfg.Ingest.AllowedExtensions)
	assert.Equal(t, int64(20*1024*1024), cfg.Ingest.MaxUploadBytes)
	assert.Equal(t, "answered", cfg.Scoring.PercentMode)
	assert.Equal(t, 40.0, cfg.Scoring.AtRiskThreshold)
	assert.Equal(t, "@every 1h", cfg.Reports.CleanupSchedule)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ANALYTICS_CACHE_TTL", "not-a-duration")
	v.Set("SCORING_PERCENT_MODE", "EXPECTED")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	cfg := fromViper(v)

	assert.Equal(t, 2*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, "expected", cfg.Scoring.PercentMode)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
