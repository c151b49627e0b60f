package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-resource-core/pkg/config"
	"github.com/noah-isme/sma-resource-core/pkg/middleware/requestid"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	cfg := &config.Config{Env: "development", Log: config.LogConfig{Level: "loud"}}
	_, err := New(cfg)
	require.Error(t, err)

	cfg.Log.Level = "debug"
	l, err := New(cfg)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestGinMiddlewareLevelsAndQuietPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.Use(GinMiddleware(zap.New(core), "/health"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/bookings/:id", func(c *gin.Context) {
		FromGin(c, nil).Info("inside handler")
		c.Status(http.StatusConflict)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	req := httptest.NewRequest(http.MethodGet, "/bookings/b-1", nil)
	req.Header.Set("X-Request-ID", "req-42")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "inside handler", entries[0].Message)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])

	access := entries[1]
	assert.Equal(t, zapcore.WarnLevel, access.Level)
	assert.Equal(t, "/bookings/:id", access.ContextMap()["route"])
	assert.Equal(t, int64(http.StatusConflict), access.ContextMap()["status"])
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, zapcore.ErrorLevel, levelFor(http.StatusServiceUnavailable))
	assert.Equal(t, zapcore.WarnLevel, levelFor(http.StatusForbidden))
	assert.Equal(t, zapcore.InfoLevel, levelFor(http.StatusCreated))
}
