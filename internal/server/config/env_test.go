package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv_OverlaysSetVariables(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("SIGNED_URL_TTL", "30s")
	t.Setenv("SECURE_COOKIES", "true")
	t.Setenv("RATE_LIMIT_CAPACITY", "3")

	c := &Config{}
	c.LoadDefaults()
	parseEnv(c, []string{"-env", filepath.Join(t.TempDir(), "missing.env")})

	assert.Equal(t, ":9999", c.HTTPAddr)
	assert.Equal(t, 30*time.Second, c.SignedURLValidityDuration)
	assert.True(t, c.SecureCookies)
	assert.Equal(t, 3, c.RateLimitCapacity)
	assert.Equal(t, "materiales-privados", c.S3PrivateBucket, "unset variables keep current value")
}

func TestParseEnv_LoadsDotenvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("REDIS_URL=redis://cache:6379/0\nAMQP_URL=amqp://guest:guest@mq:5672/\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("REDIS_URL")
		_ = os.Unsetenv("AMQP_URL")
	})

	c := &Config{}
	parseEnv(c, []string{"-env", path})

	assert.Equal(t, "redis://cache:6379/0", c.RedisURL)
	assert.Equal(t, "amqp://guest:guest@mq:5672/", c.AMQPURL)
}

func TestParseEnv_InvalidValuePanics(t *testing.T) {
	t.Setenv("LATCH_TTL", "not-a-duration")

	c := &Config{}
	require.Panics(t, func() { parseEnv(c, nil) })
}
