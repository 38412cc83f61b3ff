// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/templates/auth-backend/internal/core"
)

type Repository interface {
	Create(ctx context.Context, token *RefreshToken) error
	FindByToken(ctx context.Context, token string) (*RefreshToken, error)
	Revoke(ctx context.Context, id, replacedBy string) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
	DeleteAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountActive(ctx context.Context, now time.Time) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const tokenColumns = `id, user_id, token, expires_at, revoked, replaced_by, created_at`

func (r *repository) Create(ctx context.Context, token *RefreshToken) error {
	query := r.db.Rebind(`
		INSERT INTO refresh_tokens (
			id, user_id, token, expires_at, revoked, replaced_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		token.Token,
		token.ExpiresAt.UTC(),
		token.Revoked,
		token.ReplacedBy,
		token.CreatedAt.UTC(),
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create refresh token: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create refresh token: %w", err)
	}

	return nil
}

func (r *repository) FindByToken(
	ctx context.Context,
	value string,
) (*RefreshToken, error) {
	query := r.db.Rebind(
		"SELECT " + tokenColumns + " FROM refresh_tokens WHERE token = ?",
	)

	var token RefreshToken
	err := r.db.GetContext(ctx, &token, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return &token, nil
}

// Revoke marks a live record revoked. A record that is missing or already
// revoked yields ErrNotFound, which makes rotation one-time-use.
func (r *repository) Revoke(
	ctx context.Context,
	id, replacedBy string,
) error {
	var replaced *string
	if replacedBy != "" {
		replaced = &replacedBy
	}

	query := r.db.Rebind(`
		UPDATE refresh_tokens
		SET revoked = ?, replaced_by = ?
		WHERE id = ? AND revoked = ?`)

	result, err := r.db.ExecContext(ctx, query, true, replaced, id, false)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("revoke refresh token: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) RevokeAllForUser(
	ctx context.Context,
	userID string,
) (int64, error) {
	query := r.db.Rebind(`
		UPDATE refresh_tokens
		SET revoked = ?
		WHERE user_id = ? AND revoked = ?`)

	result, err := r.db.ExecContext(ctx, query, true, userID, false)
	if err != nil {
		return 0, fmt.Errorf("revoke all user tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke all user tokens: %w", err)
	}

	return rows, nil
}

func (r *repository) DeleteAllForUser(ctx context.Context, userID string) error {
	query := r.db.Rebind(`DELETE FROM refresh_tokens WHERE user_id = ?`)

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete user tokens: %w", err)
	}

	return nil
}

func (r *repository) DeleteExpired(
	ctx context.Context,
	now time.Time,
) (int64, error) {
	query := r.db.Rebind(`DELETE FROM refresh_tokens WHERE expires_at < ?`)

	result, err := r.db.ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	return rows, nil
}

func (r *repository) CountActive(ctx context.Context, now time.Time) (int, error) {
	query := r.db.Rebind(`
		SELECT COUNT(*) FROM refresh_tokens
		WHERE revoked = ? AND expires_at > ?`)

	var count int
	if err := r.db.GetContext(ctx, &count, query, false, now.UTC()); err != nil {
		return 0, fmt.Errorf("count active tokens: %w", err)
	}

	return count, nil
}
