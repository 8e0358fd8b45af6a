package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "seats")
	t.Setenv("JWT_SECRET", "s3cret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	for _, k := range []string{"APP_ENV", "PORT", "APP_PORT", "JWT_TTL", "BCRYPT_COST", "BOOKING_TX_TIMEOUT",
		"USER_CREDENTIALS", "AMQP_URL", "AUDIT_CONSUMER_ENABLED", "AUDIT_LOG_PATH", "LOG_LEVEL", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, 168*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 5*time.Second, cfg.TxTimeout)
	assert.Empty(t, cfg.Credentials)
	assert.Empty(t, cfg.AMQPURL)
	assert.False(t, cfg.AuditConsumerEnabled)
	assert.Equal(t, "logs/seat-audit.log", cfg.AuditLogPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "8080")
	t.Setenv("JWT_TTL", "24h")
	t.Setenv("BOOKING_TX_TIMEOUT", "750ms")
	t.Setenv("USER_CREDENTIALS", `{"Alice":"welcome1","bob":"hunter22"}`)
	t.Setenv("AUDIT_CONSUMER_ENABLED", "yes")
	t.Setenv("CORS_ORIGINS", "https://desks.example.com, http://localhost:3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 750*time.Millisecond, cfg.TxTimeout)
	assert.True(t, cfg.AuditConsumerEnabled)
	assert.Equal(t, []string{"https://desks.example.com", "http://localhost:3000"}, cfg.CORSOrigins)

	pw, ok := cfg.Credentials.DefaultPassword("Alice")
	assert.True(t, ok)
	assert.Equal(t, "welcome1", pw)
	_, ok = cfg.Credentials.DefaultPassword("alice")
	assert.False(t, ok, "lookup is case-sensitive")
	assert.Equal(t, []string{"Alice", "bob"}, cfg.Credentials.Usernames())
}

func TestLoad_ReportsAllMissing(t *testing.T) {
	for _, k := range []string{"DB_USER", "DB_HOST", "DB_PORT", "DB_NAME", "JWT_SECRET"} {
		t.Setenv(k, "")
	}
	t.Setenv("DB_HOST", "127.0.0.1")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, "missing required env vars: DB_USER, DB_PORT, DB_NAME, JWT_SECRET", err.Error())
}

func TestLoad_BadCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("USER_CREDENTIALS", `{"alice":`)

	_, err := Load()
	assert.ErrorContains(t, err, "parse USER_CREDENTIALS")
}

func TestLoadSchedulerConfig(t *testing.T) {
	t.Setenv("RELEASE_ENABLED", "")
	t.Setenv("RELEASE_CRON", "")
	t.Setenv("RELEASE_TIMEZONE", "")
	t.Setenv("PREASSIGN_USERNAME", " dave ")
	t.Setenv("PREASSIGN_SEAT_NUMBER", "495")

	sc := LoadSchedulerConfig()
	assert.True(t, sc.Enabled)
	assert.Equal(t, "35 1 * * *", sc.Cron)
	assert.Equal(t, "Asia/Kolkata", sc.Timezone)
	assert.Equal(t, "dave", sc.PreAssignUsername)
	assert.Equal(t, 495, sc.PreAssignSeatNumber)
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_BURST", "")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	rl := LoadRateLimitConfig()
	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 1, rl.RefillTokens)
	assert.Equal(t, 10*time.Second, rl.TTL)
}

func TestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_PORT", "")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_TLS", "1")

	opts := RedisOptions()
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.NotNil(t, opts.TLSConfig)

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	assert.Equal(t, "redis:6379", RedisOptions().Addr)
}
