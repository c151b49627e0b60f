package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-resource-core/internal/models"
	appErrors "github.com/noah-isme/sma-resource-core/pkg/errors"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "sma-resource-core"}, nil)

	token, expiresAt, err := svc.IssueToken(models.User{ID: "teacher-1", Role: models.RoleTeacher, FullName: "Bu Sari"}, time.Hour)
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.Actor{ID: "teacher-1", Role: models.RoleTeacher}, claims.Actor())
}

func TestTokenServiceRejectsBadTokens(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "sma-resource-core"}, nil)

	otherSecret := NewTokenService(TokenConfig{Secret: "other", Issuer: "sma-resource-core"}, nil)
	forged, _, err := otherSecret.IssueToken(models.User{ID: "u1", Role: models.RoleAdministrator}, time.Hour)
	require.NoError(t, err)

	otherIssuer := NewTokenService(TokenConfig{Secret: "secret", Issuer: "elsewhere"}, nil)
	foreign, _, err := otherIssuer.IssueToken(models.User{ID: "u1", Role: models.RoleTeacher}, time.Hour)
	require.NoError(t, err)

	expired, _, err := svc.IssueToken(models.User{ID: "u1", Role: models.RoleTeacher}, -time.Minute)
	require.NoError(t, err)

	unknownRole, _, err := svc.IssueToken(models.User{ID: "u1", Role: "JANITOR"}, time.Hour)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{UserID: "u1", Role: models.RoleAdministrator})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"wrong secret": forged,
		"wrong issuer": foreign,
		"expired":      expired,
		"unknown role": unknownRole,
		"unsigned":     unsigned,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
		})
	}
}
