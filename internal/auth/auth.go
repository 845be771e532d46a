// Package auth verifies bearer tokens issued by the identity provider and
// binds the authenticated principal to the request context.
package auth

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/brewline/brewline/internal/config"
	"github.com/brewline/brewline/pkg/errorbank"
)

// Module provides the token verifier to Fx.
var Module = fx.Provide(NewVerifier)

// Principal identifies the authenticated caller.
type Principal struct {
	UserID uuid.UUID
	Email  string
}

type ctxKey struct{}

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext extracts the principal bound by the auth middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// Verifier checks HS256 bearer tokens against the configured secret.
type Verifier struct {
	secret []byte
	issuer string
	logger *zap.Logger
}

// NewVerifier constructs a Verifier from configuration.
func NewVerifier(cfg config.Config, logger *zap.Logger) *Verifier {
	return &Verifier{
		secret: []byte(cfg.Auth.JWTSecret),
		issuer: cfg.Auth.Issuer,
		logger: logger,
	}
}

// Verify parses and validates a raw bearer token and returns its principal.
// The subject claim must be the caller's user id.
func (v *Verifier) Verify(raw string) (Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Principal{}, errorbank.Unauthorized("invalid bearer token", errorbank.WithCause(err))
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, errorbank.Unauthorized("invalid token claims")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return Principal{}, errorbank.Unauthorized("token has no subject")
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return Principal{}, errorbank.Unauthorized("token subject is not a user id")
	}

	principal := Principal{UserID: userID}
	if email, ok := claims["email"].(string); ok {
		principal.Email = email
	}
	return principal, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
