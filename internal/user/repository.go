// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/templates/auth-backend/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByVerificationToken(ctx context.Context, tokenHash string) (*User, error)
	UpdateProfile(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetVerificationToken(
		ctx context.Context,
		id, tokenHash string,
		expires time.Time,
	) error
	MarkEmailVerified(ctx context.Context, id string) error
	UpdateRole(ctx context.Context, id, role string) error
	Delete(ctx context.Context, id string) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CountByRole(ctx context.Context) (map[string]int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const userColumns = `id, email, password, name, role, email_verified,
		       verification_token, verification_token_expires,
		       created_at, updated_at`

func now() time.Time {
	return time.Now().UTC()
}

func (r *repository) Create(ctx context.Context, user *User) error {
	ts := now()
	user.CreatedAt = ts
	user.UpdatedAt = ts

	query := r.db.Rebind(`
		INSERT INTO users (
			id, email, password, name, role, email_verified,
			verification_token, verification_token_expires,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		user.Role,
		user.EmailVerified,
		user.VerificationToken,
		user.VerificationTokenExpires,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, "get user", "id", id)
}

func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	return r.getOne(ctx, "get user by email", "email", email)
}

func (r *repository) GetByVerificationToken(
	ctx context.Context,
	tokenHash string,
) (*User, error) {
	return r.getOne(
		ctx,
		"get user by verification token",
		"verification_token",
		tokenHash,
	)
}

func (r *repository) getOne(
	ctx context.Context,
	op, column string,
	value any,
) (*User, error) {
	query := r.db.Rebind(
		"SELECT " + userColumns + " FROM users WHERE " + column + " = ?",
	)

	var user User
	err := r.db.GetContext(ctx, &user, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &user, nil
}

func (r *repository) UpdateProfile(ctx context.Context, user *User) error {
	user.UpdatedAt = now()

	query := r.db.Rebind(`
		UPDATE users
		SET name = ?, email = ?, updated_at = ?
		WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query,
		user.Name,
		user.Email,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("update profile: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("update profile: %w", err)
	}

	return expectOneRow(result, "update profile")
}

func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	query := r.db.Rebind(`
		UPDATE users
		SET password = ?, updated_at = ?
		WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, passwordHash, now(), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return expectOneRow(result, "update password")
}

func (r *repository) SetVerificationToken(
	ctx context.Context,
	id, tokenHash string,
	expires time.Time,
) error {
	query := r.db.Rebind(`
		UPDATE users
		SET verification_token = ?, verification_token_expires = ?,
		    updated_at = ?
		WHERE id = ?`)

	result, err := r.db.ExecContext(
		ctx,
		query,
		tokenHash,
		expires.UTC(),
		now(),
		id,
	)
	if err != nil {
		return fmt.Errorf("set verification token: %w", err)
	}

	return expectOneRow(result, "set verification token")
}

func (r *repository) MarkEmailVerified(ctx context.Context, id string) error {
	query := r.db.Rebind(`
		UPDATE users
		SET email_verified = ?, verification_token = NULL,
		    verification_token_expires = NULL, updated_at = ?
		WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, true, now(), id)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}

	return expectOneRow(result, "mark email verified")
}

func (r *repository) UpdateRole(ctx context.Context, id, role string) error {
	if role != RoleUser && role != RoleAdmin {
		return fmt.Errorf(
			"update role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	query := r.db.Rebind(`
		UPDATE users
		SET role = ?, updated_at = ?
		WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, role, now(), id)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}

	return expectOneRow(result, "update role")
}

func (r *repository) Delete(ctx context.Context, id string) error {
	query := r.db.Rebind(`DELETE FROM users WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return expectOneRow(result, "delete user")
}

func (r *repository) ExistsByEmail(
	ctx context.Context,
	email string,
) (bool, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM users WHERE email = ?`)

	var count int
	if err := r.db.GetContext(ctx, &count, query, email); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}

	return count > 0, nil
}

func (r *repository) CountByRole(ctx context.Context) (map[string]int, error) {
	query := `SELECT role, COUNT(*) AS total FROM users GROUP BY role`

	var rows []struct {
		Role  string `db:"role"`
		Total int    `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Role] = row.Total
	}

	return counts, nil
}

func expectOneRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}
