package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/haulplan/haulplan/internal/api/models"
	"github.com/haulplan/haulplan/internal/auth"
)

// TokenValidator checks operator bearer tokens. *auth.JWTService
// implements it.
type TokenValidator interface {
	Enabled() bool
	ValidateToken(token string) (*auth.Claims, error)
}

type claimsKey struct{}

// RequireRole admits requests whose bearer token carries a role that
// allows required: 401 without a usable token, 403 for a weaker role.
// With no validator, or one without a signing key, it is a no-op.
func RequireRole(validator TokenValidator, required auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil || !validator.Enabled() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r.Header.Get("Authorization"))
			if problem != "" {
				reject(w, r, models.NewUnauthorized, problem)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				reject(w, r, models.NewUnauthorized, tokenFailure(err))
				return
			}
			if !claims.Role.Allows(required) {
				reject(w, r, models.NewForbidden, "role "+string(claims.Role)+" may not perform this operation")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

// bearerToken extracts the token from an Authorization header. The scheme
// is matched case-insensitively. A non-empty second result explains why
// the header is unusable.
func bearerToken(header string) (string, string) {
	const scheme = "bearer "
	switch {
	case header == "":
		return "", "missing authorization header"
	case len(header) < len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme):
		return "", "invalid authorization header format"
	}
	token := strings.TrimSpace(header[len(scheme):])
	if token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

func tokenFailure(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "access token has expired"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid access token"
	default:
		return "authentication failed"
	}
}

// reject writes the problem directly since the response package imports
// this one.
func reject(w http.ResponseWriter, r *http.Request, build func(traceID, detail string) *models.Problem, detail string) {
	p := build(GetRequestID(r.Context()), detail)
	p.Instance = r.URL.Path
	p.Write(w)
}

// GetSubject returns the authenticated token subject, or "" when the
// request was not authenticated.
func GetSubject(ctx context.Context) string {
	if c, ok := ctx.Value(claimsKey{}).(*auth.Claims); ok {
		return c.Subject
	}
	return ""
}
