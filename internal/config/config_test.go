package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, 256, cfg.Keys.DefaultLengthBits)
	assert.Equal(t, 64, cfg.Keys.MinLengthBits)
	assert.Equal(t, 4096, cfg.Keys.MaxLengthBits)
	assert.Equal(t, 24*time.Hour, cfg.Keys.DefaultTTL)
	assert.Equal(t, time.Hour, cfg.Keys.SweepInterval)
	assert.Equal(t, 50, cfg.Keys.MaxKeysPerHour)
	assert.Equal(t, "BB84", cfg.Keys.Protocol)
	assert.Empty(t, cfg.Security.APITokens)
	assert.Empty(t, cfg.Anchor.Endpoint)
	assert.Equal(t, "ed25519", cfg.Anchor.SigningAlg)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("KM_API_TOKENS", "tok-a, tok-b, ")
	t.Setenv("KEY_EXPIRY_HOURS", "6")
	t.Setenv("QUANTUM_PROTOCOL", "E91")
	t.Setenv("ANCHOR_ENDPOINT", "http://ledger:9000")

	cfg := DefaultConfig()
	applyEnv(cfg)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"tok-a", "tok-b"}, cfg.Security.APITokens)
	assert.Equal(t, 6*time.Hour, cfg.Keys.DefaultTTL)
	assert.Equal(t, "E91", cfg.Keys.Protocol)
	assert.Equal(t, "http://ledger:9000", cfg.Anchor.Endpoint)
}

func TestExplicitZeroDisables(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL_MINUTES", "0")
	t.Setenv("MAX_KEYS_PER_HOUR", "0")

	cfg := DefaultConfig()
	applyEnv(cfg)

	assert.Equal(t, time.Duration(0), cfg.Keys.SweepInterval)
	assert.Equal(t, 0, cfg.Keys.MaxKeysPerHour)
}

func TestMalformedIntKeepsDefault(t *testing.T) {
	t.Setenv("DEFAULT_KEY_LENGTH", "lots")

	cfg := DefaultConfig()
	applyEnv(cfg)

	assert.Equal(t, 256, cfg.Keys.DefaultLengthBits)
}
