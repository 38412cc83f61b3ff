// AngelaMos | 2026
// dto.go

package auth

import (
	"github.com/carterperez-dev/templates/auth-backend/internal/user"
)

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

type RegisterRequest struct {
	Email    string  `json:"email"    validate:"required,email,max=255"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	Name     *string `json:"name"     validate:"omitempty,min=1,max=100"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required,max=72"`
	NewPassword     string `json:"new_password"     validate:"required,min=8,max=72"`
}

type DeleteAccountRequest struct {
	Password     string `json:"password"     validate:"required,max=72"`
	Confirmation string `json:"confirmation" validate:"required"`
}

type Tokens struct {
	AccessToken  string
	RefreshToken string
}

type AuthResult struct {
	User   *user.User
	Tokens Tokens
}

type EmailStatusResponse struct {
	EmailVerified bool `json:"email_verified"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
