package core

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"billingsync/internal/types"
)

// Authenticator resolves a bearer token issued by the datastore's auth
// service into a User. Implementations return an AppError with
// auth_token_invalid or auth_token_expired on failure.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*types.User, error)
}

// AuthMiddleware attaches the caller's identity when a valid token is
// present, read from the Authorization header or the session cookie.
// Anonymous and invalid-token requests continue without a user so public
// pages still render; RequireUser guards the routes that need one.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Authenticator == nil {
			next.ServeHTTP(w, r)
			return
		}

		token := s.extractToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.Authenticator.Authenticate(r.Context(), token)
		if err != nil || user == nil {
			code := types.ErrCodeAuthTokenInvalid
			var appErr *types.AppError
			if errors.As(err, &appErr) {
				code = appErr.Code
			}
			s.Logger.InfoContext(r.Context(), "ignoring unusable auth token",
				"code", string(code),
				"path", r.URL.Path,
			)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(types.WithUser(r.Context(), *user)))
	})
}

// RequireUser rejects requests without an authenticated user with a 401
// envelope.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := types.GetUser(r.Context()); !ok {
			Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) extractToken(r *http.Request) string {
	if token := extractBearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	name := "sb-access-token"
	if s.Config != nil && s.Config.Auth.CookieName != "" {
		name = s.Config.Auth.CookieName
	}
	if c, err := r.Cookie(name); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// extractBearerToken parses "Bearer <token>" with a case-insensitive scheme
// (RFC 7235). Anything else yields "".
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) || !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}
