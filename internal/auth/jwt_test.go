package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulplan/haulplan/internal/auth"
)

func newService(key, issuer, audience string) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: key,
		Issuer:     issuer,
		Audience:   audience,
	})
}

func TestJWTService_GenerateAndValidateToken(t *testing.T) {
	svc := newService("test-secret-key-for-testing-only", "https://api.haulplan.dev", "haulplan-api")

	token, expiresAt, err := svc.GenerateToken("dispatch@example.com", auth.RoleAdmin, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "dispatch@example.com", claims.Subject)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
	assert.Equal(t, "https://api.haulplan.dev", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTService_DefaultExpiry(t *testing.T) {
	svc := newService("k", "iss", "aud")

	_, expiresAt, err := svc.GenerateToken("ops", auth.RoleViewer, 0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(auth.DefaultTokenExpiry), expiresAt, 5*time.Second)
}

func TestJWTService_UnknownRole(t *testing.T) {
	svc := newService("k", "iss", "aud")

	_, _, err := svc.GenerateToken("ops", auth.Role("root"), time.Hour)
	assert.ErrorIs(t, err, auth.ErrUnknownRole)
}

func TestJWTService_NoSigningKey(t *testing.T) {
	svc := newService("", "iss", "aud")
	assert.False(t, svc.Enabled())

	_, _, err := svc.GenerateToken("ops", auth.RoleViewer, time.Hour)
	assert.ErrorIs(t, err, auth.ErrNoSigningKey)

	_, err = svc.ValidateToken("anything")
	assert.ErrorIs(t, err, auth.ErrNoSigningKey)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := newService("test-secret-key-for-testing-only", "https://api.haulplan.dev", "haulplan-api")

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestJWTService_WrongSigningKey(t *testing.T) {
	token, _, err := newService("key-one", "iss", "aud").GenerateToken("ops", auth.RoleViewer, time.Hour)
	require.NoError(t, err)

	_, err = newService("key-two", "iss", "aud").ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTService_WrongIssuerOrAudience(t *testing.T) {
	token, _, err := newService("key", "issuer-one", "audience-one").GenerateToken("ops", auth.RoleViewer, time.Hour)
	require.NoError(t, err)

	_, err = newService("key", "issuer-two", "audience-one").ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = newService("key", "issuer-one", "audience-two").ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestJWTService_Expired(t *testing.T) {
	svc := newService("key", "iss", "aud")

	token, _, err := svc.GenerateToken("ops", auth.RoleViewer, time.Second)
	require.NoError(t, err)

	later := newService("key", "iss", "aud")
	auth.SetClock(later, func() time.Time { return time.Now().Add(time.Hour) })

	_, err = later.ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestRole_Allows(t *testing.T) {
	assert.True(t, auth.RoleAdmin.Allows(auth.RoleAdmin))
	assert.True(t, auth.RoleAdmin.Allows(auth.RoleViewer))
	assert.True(t, auth.RoleViewer.Allows(auth.RoleViewer))
	assert.False(t, auth.RoleViewer.Allows(auth.RoleAdmin))
	assert.False(t, auth.Role("").Allows(auth.RoleViewer))
}
