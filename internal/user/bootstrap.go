// AngelaMos | 2026
// bootstrap.go

package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/auth-backend/internal/core"
)

// EnsureAdmin promotes the account registered under email, or creates it
// with the given password when absent. The returned bool reports creation.
// Existing passwords are left untouched. Bootstrapped admins are marked
// verified so verified-only routes accept them.
func EnsureAdmin(
	ctx context.Context,
	db *sqlx.DB,
	email, password, name string,
) (*User, bool, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, false, core.BadRequestError("admin email is required")
	}

	var (
		result  *User
		created bool
	)

	err := core.InTx(ctx, db, func(tx *sqlx.Tx) error {
		repo := NewRepository(tx)

		existing, err := repo.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if err := repo.UpdateRole(ctx, existing.ID, RoleAdmin); err != nil {
				return err
			}
			if !existing.EmailVerified {
				if err := repo.MarkEmailVerified(ctx, existing.ID); err != nil {
					return err
				}
			}
			result, err = repo.GetByID(ctx, existing.ID)
			return err
		case !errors.Is(err, core.ErrNotFound):
			return err
		}

		if password == "" {
			return core.BadRequestError("admin password is required")
		}
		hash, err := core.HashPassword(password)
		if err != nil {
			return err
		}

		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate user id: %w", err)
		}

		u := &User{
			ID:            id.String(),
			Email:         email,
			PasswordHash:  hash,
			Role:          RoleAdmin,
			EmailVerified: true,
		}
		if name != "" {
			u.Name = &name
		}
		if err := repo.Create(ctx, u); err != nil {
			return err
		}

		result, created = u, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return result, created, nil
}
