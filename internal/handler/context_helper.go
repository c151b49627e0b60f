package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-resource-core/internal/middleware"
	"github.com/noah-isme/sma-resource-core/internal/models"
	appErrors "github.com/noah-isme/sma-resource-core/pkg/errors"
	"github.com/noah-isme/sma-resource-core/pkg/response"
)

const dateLayout = "2006-01-02"

// actorFromContext resolves the authenticated caller, writing a 401 when absent.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return claims.Actor(), true
}

func respond(c *gin.Context, status int, data interface{}) {
	response.JSON(c, status, data, middleware.ExtractMeta(c))
}

func badRequest(c *gin.Context, err error, message string) {
	if err == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, message))
		return
	}
	response.Error(c, appErrors.ErrValidation.Because(err, message))
}

func parseDate(raw string) (time.Time, error) {
	return time.Parse(dateLayout, raw)
}

// optionalDate parses a YYYY-MM-DD query value; empty yields nil.
func optionalDate(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	t, err := parseDate(raw)
	if err != nil {
		badRequest(c, err, key+" must be formatted as YYYY-MM-DD")
		return nil, false
	}
	return &t, true
}

// requiredTime parses an RFC3339 query value.
func requiredTime(c *gin.Context, key string) (time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, key+" is required"))
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		badRequest(c, err, key+" must be an RFC3339 timestamp")
		return time.Time{}, false
	}
	return t, true
}
