package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenantTokenRoundTrip(t *testing.T) {
	token, err := GenerateTenantToken("secret", "tenant-a", "user-1", time.Minute)
	require.NoError(t, err)

	claims, err := ParseTenantToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", claims.TenantID)
	assert.Equal(t, "user-1", claims.UserID)
}

func TestParseTenantTokenRejects(t *testing.T) {
	valid, err := GenerateTenantToken("secret", "tenant-a", "user-1", time.Minute)
	require.NoError(t, err)

	_, err = ParseTenantToken(valid, "other-secret")
	assert.Error(t, err)

	expired, err := GenerateTenantToken("secret", "tenant-a", "user-1", -time.Minute)
	require.NoError(t, err)
	_, err = ParseTenantToken(expired, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	noTenant, err := GenerateTenantToken("secret", "", "user-1", time.Minute)
	require.NoError(t, err)
	_, err = ParseTenantToken(noTenant, "secret")
	assert.ErrorIs(t, err, ErrMissingTenant)

	_, err = ParseTenantToken("not.a.jwt", "secret")
	assert.Error(t, err)
}
