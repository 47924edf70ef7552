// Package auth verifies access tokens issued by the datastore's built-in
// auth service (Supabase). Identity is never minted here; a token is either
// accepted as-is or rejected.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"billingsync/internal/types"
)

// clockSkew tolerates small drift between the issuer and this host.
const clockSkew = 30 * time.Second

// Claims is the subset of the Supabase access-token payload that is used.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 tokens signed with the project JWT secret.
type TokenVerifier struct {
	secret   []byte
	audience string
	now      func() time.Time
	logger   *slog.Logger
}

// NewTokenVerifier creates a verifier for the given secret and audience
// (Supabase uses "authenticated" for signed-in users).
func NewTokenVerifier(secret types.SecretString, audience string, logger *slog.Logger) *TokenVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenVerifier{
		secret:   []byte(secret.Unmask()),
		audience: audience,
		now:      time.Now,
		logger:   logger,
	}
}

// Authenticate parses and verifies token and returns the user it names.
// The subject must be a UUID, the auth service's user id format.
func (v *TokenVerifier) Authenticate(ctx context.Context, token string) (*types.User, error) {
	if token == "" {
		return nil, types.NewAppError(types.ErrCodeAuthTokenMissing, "access token is required", nil)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(v.now),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, types.NewAppError(types.ErrCodeAuthTokenExpired, "access token has expired", err)
		}
		v.logger.DebugContext(ctx, "access token rejected", "error", err)
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "access token is invalid", err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "access token subject is not a user id", err)
	}

	return &types.User{ID: id.String(), Email: claims.Email}, nil
}
