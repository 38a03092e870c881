package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"REDIS_URL":      "redis://localhost:6379/0",
		"JWT_SECRET":     "secret",
		"DATABASE_URL":   "postgres://localhost/toko",
		"CATALOG_SOURCE": "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, CatalogPostgres, cfg.CatalogSource)
	require.Equal(t, 3*time.Second, cfg.AnalysisTimeout)
	require.Equal(t, 500*time.Millisecond, cfg.AnalysisDebounce)
	require.Equal(t, 168*time.Hour, cfg.CartTTL)
	require.True(t, cfg.SecurityHeaders)
	require.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestLoadRemoteRequiresBaseURL(t *testing.T) {
	env := baseEnv()
	env["CATALOG_SOURCE"] = "remote"
	env["CATALOG_BASE_URL"] = ""
	_, err := LoadForTests(env)
	require.ErrorContains(t, err, "CATALOG_BASE_URL")

	env["CATALOG_BASE_URL"] = "http://catalog.internal/"
	env["DATABASE_URL"] = ""
	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, "http://catalog.internal", cfg.CatalogBaseURL)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["ANALYSIS_TIMEOUT"] = "750ms"
	env["RATE_LIMIT_MAX"] = "7"
	env["CURRENCY_CODE"] = "usd"
	env["SECURITY_HEADERS_ENABLED"] = "false"
	env["RETRY_JITTER_PERCENT"] = "not-a-number"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, 750*time.Millisecond, cfg.AnalysisTimeout)
	require.Equal(t, 7, cfg.RateLimitMax)
	require.Equal(t, "USD", cfg.Currency)
	require.False(t, cfg.SecurityHeaders)
	require.Equal(t, 20.0, cfg.RetryJitterPercent)
}

func TestLoadRejectsUnknownSource(t *testing.T) {
	env := baseEnv()
	env["CATALOG_SOURCE"] = "sqlite"
	_, err := LoadForTests(env)
	require.Error(t, err)
}
