package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Zero(t, cfg.Booking.Horizon, "zero selects the calendar-month horizon")
	assert.Equal(t, time.Hour, cfg.Booking.PastGrace)
	assert.Equal(t, LockBackendLocal, cfg.Booking.LockBackend)
	assert.Equal(t, 10*time.Second, cfg.Booking.LockTTL)
	assert.False(t, cfg.Stats.CacheEnabled)
	assert.Equal(t, 5*time.Minute, cfg.Stats.CacheTTL)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("BOOKING_HORIZON", "720h")
	v.Set("BOOKING_PAST_GRACE", "not-a-duration")
	v.Set("BOOKING_LOCK_BACKEND", " Redis ")
	v.Set("ENABLE_STATS_CACHE", true)
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := fromViper(v)
	assert.Equal(t, 720*time.Hour, cfg.Booking.Horizon)
	assert.Equal(t, time.Hour, cfg.Booking.PastGrace)
	assert.Equal(t, LockBackendRedis, cfg.Booking.LockBackend)
	assert.True(t, cfg.Stats.CacheEnabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestUnknownLockBackendFallsBackToLocal(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("BOOKING_LOCK_BACKEND", "etcd")

	assert.Equal(t, LockBackendLocal, fromViper(v).Booking.LockBackend)
}
