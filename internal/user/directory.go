// AngelaMos | 2026
// directory.go

package user

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/auth-backend/internal/cache"
	"github.com/carterperez-dev/templates/auth-backend/internal/core"
)

// Directory is the cache-first read path for users. The relational store
// is authoritative; cached copies are dropped on every mutation and never
// updated in place.
type Directory struct {
	db     *sqlx.DB
	cache  *cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewDirectory(
	db *sqlx.DB,
	c *cache.Cache,
	ttl time.Duration,
	logger *slog.Logger,
) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		db:     db,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (d *Directory) GetByID(ctx context.Context, id string) (*User, error) {
	var cached User
	if d.cache.GetJSON(ctx, cache.UserIDKey(id), &cached) {
		return &cached, nil
	}

	return d.load(ctx, func(repo Repository) (*User, error) {
		return repo.GetByID(ctx, id)
	})
}

func (d *Directory) GetByEmail(ctx context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)

	var cached User
	if d.cache.GetJSON(ctx, cache.UserEmailKey(email), &cached) {
		return &cached, nil
	}

	return d.load(ctx, func(repo Repository) (*User, error) {
		return repo.GetByEmail(ctx, email)
	})
}

func (d *Directory) load(
	ctx context.Context,
	fetch func(repo Repository) (*User, error),
) (*User, error) {
	var found *User
	err := core.InTx(ctx, d.db, func(tx *sqlx.Tx) error {
		u, err := fetch(NewRepository(tx))
		if err != nil {
			return err
		}
		found = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.Prime(ctx, found)
	return found, nil
}

// Prime caches u under both its id and email keys.
func (d *Directory) Prime(ctx context.Context, u *User) {
	d.cache.SetJSON(ctx, cache.UserIDKey(u.ID), u, d.ttl)
	d.cache.SetJSON(ctx, cache.UserEmailKey(u.Email), u, d.ttl)
}

// Invalidate drops the id key and every given email key.
func (d *Directory) Invalidate(ctx context.Context, id string, emails ...string) {
	keys := make([]string, 0, len(emails)+1)
	keys = append(keys, cache.UserIDKey(id))
	for _, email := range emails {
		if email != "" {
			keys = append(keys, cache.UserEmailKey(NormalizeEmail(email)))
		}
	}
	d.cache.Delete(ctx, keys...)
}

// UpdateProfile applies a name and/or email change. Moving to an email
// owned by another account is a conflict.
func (d *Directory) UpdateProfile(
	ctx context.Context,
	id string,
	req UpdateProfileRequest,
) (*User, error) {
	var (
		updated  *User
		oldEmail string
	)

	err := core.InTx(ctx, d.db, func(tx *sqlx.Tx) error {
		repo := NewRepository(tx)

		u, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		oldEmail = u.Email

		if req.Name != nil {
			u.Name = req.Name
		}

		if req.Email != nil {
			email := NormalizeEmail(*req.Email)
			if email != u.Email {
				exists, err := repo.ExistsByEmail(ctx, email)
				if err != nil {
					return err
				}
				if exists {
					return core.ConflictError("email already in use")
				}
				u.Email = email
			}
		}

		if err := repo.UpdateProfile(ctx, u); err != nil {
			return err
		}

		updated = u
		return nil
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, core.ConflictError("email already in use")
		}
		return nil, err
	}

	d.Invalidate(ctx, id, oldEmail, updated.Email)
	return updated, nil
}
