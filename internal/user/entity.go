// AngelaMos | 2026
// entity.go

package user

import (
	"time"
)

type User struct {
	ID                       string     `db:"id"                         json:"id"`
	Email                    string     `db:"email"                      json:"email"`
	PasswordHash             string     `db:"password"                   json:"password"`
	Name                     *string    `db:"name"                       json:"name"`
	Role                     string     `db:"role"                       json:"role"`
	EmailVerified            bool       `db:"email_verified"             json:"email_verified"`
	VerificationToken        *string    `db:"verification_token"         json:"verification_token"`
	VerificationTokenExpires *time.Time `db:"verification_token_expires" json:"verification_token_expires"`
	CreatedAt                time.Time  `db:"created_at"                 json:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at"                 json:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
