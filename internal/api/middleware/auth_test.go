package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulplan/haulplan/internal/api/middleware"
	"github.com/haulplan/haulplan/internal/api/models"
	"github.com/haulplan/haulplan/internal/auth"
)

func newJWTService() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-signing-key-with-enough-bytes",
		Issuer:     "haulplan-test",
		Audience:   "haulplan-api",
	})
}

func issue(t *testing.T, svc *auth.JWTService, subject string, role auth.Role) string {
	t.Helper()
	token, _, err := svc.GenerateToken(subject, role, time.Hour)
	require.NoError(t, err)
	return token
}

func subjectEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(middleware.GetSubject(r.Context())))
	})
}

func serveWithAuth(h http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/history", http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireRole_ValidToken(t *testing.T) {
	svc := newJWTService()
	h := middleware.RequireRole(svc, auth.RoleViewer)(subjectEcho())

	rec := serveWithAuth(h, "Bearer "+issue(t, svc, "dispatch-1", auth.RoleViewer))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dispatch-1", rec.Body.String())
}

func TestRequireRole_AdminSatisfiesViewer(t *testing.T) {
	svc := newJWTService()
	h := middleware.RequireRole(svc, auth.RoleViewer)(subjectEcho())

	rec := serveWithAuth(h, "bearer "+issue(t, svc, "ops", auth.RoleAdmin))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops", rec.Body.String())
}

func TestRequireRole_ViewerCannotAdmin(t *testing.T) {
	svc := newJWTService()
	h := middleware.RequireRole(svc, auth.RoleAdmin)(subjectEcho())

	rec := serveWithAuth(h, "Bearer "+issue(t, svc, "dispatch-1", auth.RoleViewer))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var p models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, models.ProblemTypeForbidden, p.Type)
	assert.Equal(t, "/v1/history", p.Instance)
}

func TestRequireRole_Rejections(t *testing.T) {
	svc := newJWTService()
	other := auth.NewJWTService(auth.JWTConfig{SigningKey: "a-different-signing-key-entirely", Issuer: "haulplan-test", Audience: "haulplan-api"})
	h := middleware.RequireRole(svc, auth.RoleViewer)(subjectEcho())

	tests := []struct {
		name   string
		header string
		detail string
	}{
		{"missing header", "", "missing authorization header"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "invalid authorization header format"},
		{"short header", "Bear", "invalid authorization header format"},
		{"empty token", "Bearer   ", "missing bearer token"},
		{"garbage token", "Bearer not-a-jwt", "invalid access token"},
		{"wrong key", "Bearer " + issue(t, other, "x", auth.RoleAdmin), "invalid access token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveWithAuth(h, tt.header)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
			var p models.Problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
			assert.Equal(t, tt.detail, p.Detail)
		})
	}
}

type stubValidator struct {
	err error
}

func (stubValidator) Enabled() bool { return true }

func (s stubValidator) ValidateToken(string) (*auth.Claims, error) { return nil, s.err }

func TestRequireRole_ExpiredToken(t *testing.T) {
	h := middleware.RequireRole(stubValidator{err: auth.ErrTokenExpired}, auth.RoleViewer)(subjectEcho())

	rec := serveWithAuth(h, "Bearer whatever")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "access token has expired")
}

func TestRequireRole_DisabledPassesThrough(t *testing.T) {
	disabled := auth.NewJWTService(auth.JWTConfig{})
	require.False(t, disabled.Enabled())

	for _, v := range []middleware.TokenValidator{nil, disabled} {
		h := middleware.RequireRole(v, auth.RoleAdmin)(subjectEcho())
		rec := serveWithAuth(h, "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
	}
}

func TestGetSubject_Unauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	assert.Empty(t, middleware.GetSubject(req.Context()))
}
