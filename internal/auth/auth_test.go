package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brewline/brewline/internal/config"
	"github.com/brewline/brewline/pkg/errorbank"
)

const testSecret = "test-secret"

func newTestVerifier() *Verifier {
	cfg := config.Config{Auth: config.Auth{JWTSecret: testSecret, Issuer: "brewline"}}
	return NewVerifier(cfg, zap.NewNop())
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func TestVerifyValidToken(t *testing.T) {
	v := newTestVerifier()
	userID := uuid.New()
	raw := signToken(t, testSecret, jwt.MapClaims{
		"sub":   userID.String(),
		"iss":   "brewline",
		"email": "casey@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	principal, err := v.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, userID, principal.UserID)
	assert.Equal(t, "casey@example.com", principal.Email)
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	v := newTestVerifier()
	raw := signToken(t, "other-secret", jwt.MapClaims{
		"sub": uuid.New().String(),
		"iss": "brewline",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := v.Verify(raw)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindUnauthorized))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v := newTestVerifier()
	raw := signToken(t, testSecret, jwt.MapClaims{
		"sub": uuid.New().String(),
		"iss": "brewline",
		"exp": time.Now().Add(-time.Minute).Unix(),
	})

	_, err := v.Verify(raw)
	assert.True(t, errorbank.IsKind(err, errorbank.KindUnauthorized))
}

func TestVerifyRejectsNonUUIDSubject(t *testing.T) {
	v := newTestVerifier()
	raw := signToken(t, testSecret, jwt.MapClaims{
		"sub": "not-a-uuid",
		"iss": "brewline",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := v.Verify(raw)
	assert.True(t, errorbank.IsKind(err, errorbank.KindUnauthorized))
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc.def.ghi")
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", token)

	_, ok = BearerToken("")
	assert.False(t, ok)
	_, ok = BearerToken("Basic dXNlcg==")
	assert.False(t, ok)

	token, ok = BearerToken("bearer abc")
	assert.True(t, ok, "scheme comparison is case-insensitive")
	assert.Equal(t, "abc", token)
}
