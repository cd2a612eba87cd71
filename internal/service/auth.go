package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/randgate/backend/internal/domain"
)

// AuthService signs and verifies admin JWTs. Tokens are minted offline by
// randgatectl; there is no login endpoint.
type AuthService struct {
	jwtSecret string
	now       func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(jwtSecret string) *AuthService {
	return &AuthService{jwtSecret: jwtSecret, now: time.Now}
}

// Enabled reports whether a signing secret is configured.
func (s *AuthService) Enabled() bool {
	return s.jwtSecret != ""
}

// IssueToken signs a token for subject with the given role and lifetime.
func (s *AuthService) IssueToken(subject, role string, ttl time.Duration) (*domain.IssuedToken, error) {
	if !s.Enabled() {
		return nil, domain.ErrInternal("jwt secret is not configured", nil)
	}
	if subject == "" {
		return nil, domain.ErrBadRequest("subject is required")
	}

	now := s.now()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, domain.ErrInternal("failed to sign token", err)
	}
	return &domain.IssuedToken{Token: signed, ExpiresAt: exp}, nil
}

// VerifyToken validates a JWT token and returns the claims.
func (s *AuthService) VerifyToken(tokenStr string) (*domain.JWTClaims, error) {
	if !s.Enabled() {
		return nil, domain.ErrUnauthorized("admin api disabled")
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized("invalid token claims")
	}

	return &domain.JWTClaims{
		Sub:  getClaimString(claims, "sub"),
		Role: getClaimString(claims, "role"),
	}, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
