// AngelaMos | 2026
// tokens.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/auth-backend/internal/core"
)

type RefreshValidation struct {
	Claims   *Claims
	RecordID string
}

// TokenManager owns the lifecycle of access and refresh tokens. Access
// tokens are stateless; every refresh token is backed by a row in
// refresh_tokens.
type TokenManager struct {
	db     *sqlx.DB
	jwt    *JWTManager
	logger *slog.Logger
}

func NewTokenManager(
	db *sqlx.DB,
	jwt *JWTManager,
	logger *slog.Logger,
) *TokenManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenManager{db: db, jwt: jwt, logger: logger}
}

func (m *TokenManager) AccessTokenTTL() time.Duration {
	return m.jwt.AccessTokenTTL()
}

func (m *TokenManager) RefreshTokenTTL() time.Duration {
	return m.jwt.RefreshTokenTTL()
}

func (m *TokenManager) IssueAccessToken(
	userID, email, role string,
) (string, error) {
	token, _, err := m.jwt.Sign(userID, email, role, TokenTypeAccess)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return token, nil
}

// IssueRefreshToken signs a refresh token and stores its record.
func (m *TokenManager) IssueRefreshToken(
	ctx context.Context,
	userID, email, role string,
) (string, error) {
	return m.issueRefresh(ctx, NewRepository(m.db), userID, email, role)
}

func (m *TokenManager) issueRefresh(
	ctx context.Context,
	repo Repository,
	userID, email, role string,
) (string, error) {
	token, claims, err := m.jwt.Sign(userID, email, role, TokenTypeRefresh)
	if err != nil {
		return "", fmt.Errorf("issue refresh token: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	record := &RefreshToken{
		ID:        id.String(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: claims.ExpiresAt,
		Revoked:   false,
		CreatedAt: m.jwt.now().UTC(),
	}

	if err := repo.Create(ctx, record); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}

	return token, nil
}

// ValidateAccessToken never returns an error; any verification failure is
// reported as not ok.
func (m *TokenManager) ValidateAccessToken(
	ctx context.Context,
	token string,
) (*Claims, bool) {
	claims, err := m.jwt.Verify(token, TokenTypeAccess)
	if err != nil {
		m.logger.DebugContext(ctx, "access token rejected", "error", err)
		return nil, false
	}
	return claims, true
}

// ValidateRefreshToken requires a valid signature and a live record:
// present, not revoked and not expired.
func (m *TokenManager) ValidateRefreshToken(
	ctx context.Context,
	token string,
) (*RefreshValidation, bool) {
	claims, err := m.jwt.Verify(token, TokenTypeRefresh)
	if err != nil {
		m.logger.DebugContext(ctx, "refresh token rejected", "error", err)
		return nil, false
	}

	record, err := NewRepository(m.db).FindByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			m.logger.ErrorContext(ctx, "refresh token lookup failed",
				"error", err,
			)
		}
		return nil, false
	}

	if record.UserID != claims.UserID || !record.IsUsable(m.jwt.now()) {
		m.logger.DebugContext(ctx, "refresh token record not usable",
			"record_id", record.ID,
			"revoked", record.Revoked,
		)
		return nil, false
	}

	return &RefreshValidation{Claims: claims, RecordID: record.ID}, true
}

// RotateRefreshToken issues a successor token and revokes oldRecordID in
// one transaction. Rotating an already revoked record fails with
// ErrTokenRevoked and leaves no new record behind.
func (m *TokenManager) RotateRefreshToken(
	ctx context.Context,
	oldRecordID, userID, email, role string,
) (string, error) {
	var next string

	err := core.InTx(ctx, m.db, func(tx *sqlx.Tx) error {
		repo := NewRepository(tx)

		token, err := m.issueRefresh(ctx, repo, userID, email, role)
		if err != nil {
			return err
		}

		if err := repo.Revoke(ctx, oldRecordID, token); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("rotate refresh token: %w", core.ErrTokenRevoked)
			}
			return err
		}

		next = token
		return nil
	})
	if err != nil {
		return "", err
	}

	return next, nil
}

func (m *TokenManager) RevokeAllForUser(
	ctx context.Context,
	userID string,
) error {
	return m.revokeAll(ctx, NewRepository(m.db), userID)
}

func (m *TokenManager) revokeAll(
	ctx context.Context,
	repo Repository,
	userID string,
) error {
	n, err := repo.RevokeAllForUser(ctx, userID)
	if err != nil {
		return err
	}

	m.logger.DebugContext(ctx, "refresh tokens revoked",
		"user_id", userID,
		"count", n,
	)
	return nil
}

// PurgeExpired deletes records whose expiry has passed.
func (m *TokenManager) PurgeExpired(ctx context.Context) (int64, error) {
	return NewRepository(m.db).DeleteExpired(ctx, m.jwt.now())
}

func (m *TokenManager) CountActive(ctx context.Context) (int, error) {
	return NewRepository(m.db).CountActive(ctx, m.jwt.now())
}
