// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// RefreshToken is the revocable record behind a signed refresh token. The
// record, not the signature, decides whether the token is usable.
type RefreshToken struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	Token      string    `db:"token"`
	ExpiresAt  time.Time `db:"expires_at"`
	Revoked    bool      `db:"revoked"`
	ReplacedBy *string   `db:"replaced_by"`
	CreatedAt  time.Time `db:"created_at"`
}

func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func (t *RefreshToken) IsUsable(now time.Time) bool {
	return !t.Revoked && !t.IsExpired(now)
}
