// AngelaMos | 2026
// credentials.go

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/carterperez-dev/templates/auth-backend/internal/core"
	"github.com/carterperez-dev/templates/auth-backend/internal/user"
)

type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

type CredentialValidator struct {
	users UserLookup
}

func NewCredentialValidator(users UserLookup) *CredentialValidator {
	return &CredentialValidator{users: users}
}

// Validate returns the user owning email when password matches. An unknown
// email and a wrong password fail identically, and both cost one hash
// comparison. The second return value is a replacement hash when the stored
// one should be upgraded.
func (v *CredentialValidator) Validate(
	ctx context.Context,
	email, password string,
) (*user.User, string, error) {
	u, err := v.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing parity with the found-user path
			_, _, _ = core.VerifyPasswordTimingSafe(password, nil)
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("get user: %w", err)
	}

	newHash, ok, err := v.compare(u, password)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", ErrInvalidCredentials
	}

	return u, newHash, nil
}

// Compare checks password against u's stored hash.
func (v *CredentialValidator) Compare(u *user.User, password string) (bool, error) {
	_, ok, err := v.compare(u, password)
	return ok, err
}

func (v *CredentialValidator) compare(
	u *user.User,
	password string,
) (string, bool, error) {
	valid, newHash, err := core.VerifyPasswordTimingSafe(
		password,
		&u.PasswordHash,
	)
	if err != nil {
		return "", false, fmt.Errorf("verify password: %w", err)
	}
	return newHash, valid, nil
}
