package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pisoforte/insights-engine/pkg/config"
)

const testSecret = "test-secret-for-unit-tests"

func signedToken(t *testing.T, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func testClaims(subject string) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: "vendedor@pisoforte.com.br",
	}
}

func newTestService(verify bool) AuthService {
	return NewAuthService(&config.AuthConfig{
		EnableVerification: verify,
		JWTSecret:          testSecret,
	})
}

func requestWithToken(token string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/insights/query", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestValidateRequest_ValidToken(t *testing.T) {
	svc := newTestService(true)

	claims, raw, err := svc.ValidateRequest(requestWithToken(signedToken(t, testClaims("user-123"))))
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.NotEmpty(t, raw)
}

func TestValidateRequest_MissingHeader(t *testing.T) {
	svc := newTestService(true)

	_, _, err := svc.ValidateRequest(requestWithToken(""))
	assert.Error(t, err)
}

func TestValidateRequest_MalformedHeader(t *testing.T) {
	svc := newTestService(true)

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Authorization", "Token abc")
	_, _, err := svc.ValidateRequest(r)
	assert.Error(t, err)
}

func TestValidateRequest_WrongSecret(t *testing.T) {
	svc := newTestService(true)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, testClaims("user-123"))
	signed, err := token.SignedString([]byte("another-secret"))
	require.NoError(t, err)

	_, _, err = svc.ValidateRequest(requestWithToken(signed))
	assert.Error(t, err)
}

func TestValidateRequest_ExpiredToken(t *testing.T) {
	svc := newTestService(true)

	claims := testClaims("user-123")
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	_, _, err := svc.ValidateRequest(requestWithToken(signedToken(t, claims)))
	assert.Error(t, err)
}

func TestValidateRequest_EmptySubject(t *testing.T) {
	svc := newTestService(true)

	_, _, err := svc.ValidateRequest(requestWithToken(signedToken(t, testClaims(""))))
	assert.Error(t, err)
}

func TestValidateRequest_VerificationDisabled(t *testing.T) {
	svc := newTestService(false)

	// Signed with a different secret, but verification is off.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, testClaims("dev-user"))
	signed, err := token.SignedString([]byte("whatever"))
	require.NoError(t, err)

	claims, _, err := svc.ValidateRequest(requestWithToken(signed))
	require.NoError(t, err)
	assert.Equal(t, "dev-user", claims.Subject)
}

func TestMiddleware_RequireAuth(t *testing.T) {
	svc := newTestService(true)
	mw := NewMiddleware(svc, zap.NewNop())

	var gotUserID string
	handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("authenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, requestWithToken(signedToken(t, testClaims("user-456"))))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-456", gotUserID)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler(rec, requestWithToken(""))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "unauthorized")
	})
}
