// AngelaMos | 2026
// jwt.go

package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/templates/auth-backend/internal/config"
	"github.com/carterperez-dev/templates/auth-backend/internal/core"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type Claims struct {
	UserID    string
	Email     string
	Role      string
	Type      string
	ID        string
	ExpiresAt time.Time
}

// JWTManager signs and verifies compact HS256 tokens with a shared secret.
type JWTManager struct {
	secret []byte
	config config.JWTConfig
	now    func() time.Time
}

func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	return &JWTManager{
		secret: []byte(cfg.Secret),
		config: cfg,
		now:    time.Now,
	}, nil
}

// WithClock replaces the time source used for issuing and validating.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	m.now = now
	return m
}

func (m *JWTManager) expiryFor(tokenType string) time.Duration {
	if tokenType == TokenTypeRefresh {
		return m.config.RefreshTokenExpire
	}
	return m.config.AccessTokenExpire
}

func (m *JWTManager) Sign(
	userID, email, role, tokenType string,
) (string, *Claims, error) {
	now := m.now()
	exp := now.Add(m.expiryFor(tokenType))
	jti := uuid.NewString()

	token, err := jwt.NewBuilder().
		JwtID(jti).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(userID).
		IssuedAt(now).
		NotBefore(now).
		Expiration(exp).
		Claim("email", email).
		Claim("role", role).
		Claim("type", tokenType).
		Build()
	if err != nil {
		return "", nil, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), m.secret))
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}

	return string(signed), &Claims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		Type:      tokenType,
		ID:        jti,
		ExpiresAt: exp,
	}, nil
}

// Verify checks signature, registered claims and the expected token type.
func (m *JWTManager) Verify(tokenString, wantType string) (*Claims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), m.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithClock(jwt.ClockFunc(m.now)),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w: %w", core.ErrTokenInvalid, err)
	}

	var tokenType string
	if err := token.Get("type", &tokenType); err != nil || tokenType != wantType {
		return nil, fmt.Errorf(
			"verify token: unexpected token type %q: %w",
			tokenType,
			core.ErrTokenInvalid,
		)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	var email, role string
	if err := token.Get("email", &email); err != nil {
		return nil, fmt.Errorf(
			"verify token: missing email claim: %w",
			core.ErrTokenInvalid,
		)
	}
	if err := token.Get("role", &role); err != nil {
		return nil, fmt.Errorf(
			"verify token: missing role claim: %w",
			core.ErrTokenInvalid,
		)
	}

	jti, _ := token.JwtID()
	exp, _ := token.Expiration()

	return &Claims{
		UserID:    subject,
		Email:     email,
		Role:      role,
		Type:      tokenType,
		ID:        jti,
		ExpiresAt: exp,
	}, nil
}

func (m *JWTManager) AccessTokenTTL() time.Duration {
	return m.config.AccessTokenExpire
}

func (m *JWTManager) RefreshTokenTTL() time.Duration {
	return m.config.RefreshTokenExpire
}
