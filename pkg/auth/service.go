package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pisoforte/insights-engine/pkg/config"
)

// AuthService validates bearer tokens on incoming requests.
type AuthService interface {
	// ValidateRequest extracts and verifies the bearer token from the
	// Authorization header, returning the claims and raw token.
	ValidateRequest(r *http.Request) (*Claims, string, error)
}

type authService struct {
	cfg *config.AuthConfig
}

// NewAuthService creates an AuthService from the auth configuration.
func NewAuthService(cfg *config.AuthConfig) AuthService {
	return &authService{cfg: cfg}
}

var _ AuthService = (*authService)(nil)

func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, "", fmt.Errorf("missing Authorization header")
	}

	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenStr == "" {
		return nil, "", fmt.Errorf("malformed Authorization header")
	}

	claims := &Claims{}

	if !s.cfg.EnableVerification {
		// Local development: decode without signature verification.
		parser := jwt.NewParser()
		if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
			return nil, "", fmt.Errorf("parse token: %w", err)
		}
		return claims, tokenStr, nil
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("verify token: %w", err)
	}
	if !token.Valid {
		return nil, "", fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, "", fmt.Errorf("token has no subject")
	}

	return claims, tokenStr, nil
}
