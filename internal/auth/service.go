// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/auth-backend/internal/core"
	"github.com/carterperez-dev/templates/auth-backend/internal/email"
	"github.com/carterperez-dev/templates/auth-backend/internal/middleware"
	"github.com/carterperez-dev/templates/auth-backend/internal/session"
	"github.com/carterperez-dev/templates/auth-backend/internal/user"
)

const (
	verificationTokenBytes = 32
	verificationTokenTTL   = 24 * time.Hour

	DeleteConfirmation = "DELETE"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRefreshToken tells the transport to drop the refresh cookie.
	ErrInvalidRefreshToken = fmt.Errorf(
		"invalid refresh token: %w",
		core.ErrUnauthorized,
	)
)

type Deps struct {
	DB          *sqlx.DB
	Users       *user.Directory
	Credentials *CredentialValidator
	Tokens      *TokenManager
	Sessions    *session.Manager
	Resolver    IdentityResolver
	Notifier    email.Notifier
	Logger      *slog.Logger
	Now         func() time.Time
}

// Service orchestrates registration, login and account lifecycle across
// the token and session mechanisms.
type Service struct {
	db          *sqlx.DB
	users       *user.Directory
	credentials *CredentialValidator
	tokens      *TokenManager
	sessions    *session.Manager
	resolver    IdentityResolver
	notifier    email.Notifier
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Resolver == nil {
		d.Resolver = NewDefaultResolver(d.Tokens)
	}
	if d.Credentials == nil {
		d.Credentials = NewCredentialValidator(d.Users)
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	return &Service{
		db:          d.DB,
		users:       d.Users,
		credentials: d.Credentials,
		tokens:      d.Tokens,
		sessions:    d.Sessions,
		resolver:    d.Resolver,
		notifier:    d.Notifier,
		logger:      d.Logger,
		now:         d.Now,
	}
}

func (s *Service) Register(
	ctx context.Context,
	creds Credentials,
	req RegisterRequest,
) (*AuthResult, error) {
	ctx, span := core.StartSpan(ctx, "auth.Register")
	defer span.End()

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}

	rawToken, err := core.GenerateSecureToken(verificationTokenBytes)
	if err != nil {
		return nil, err
	}
	tokenHash := core.HashToken(rawToken)
	expires := s.now().Add(verificationTokenTTL).UTC()

	u := &user.User{
		ID:                       id.String(),
		Email:                    user.NormalizeEmail(req.Email),
		PasswordHash:             passwordHash,
		Name:                     req.Name,
		Role:                     user.RoleUser,
		EmailVerified:            false,
		VerificationToken:        &tokenHash,
		VerificationTokenExpires: &expires,
	}

	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := user.NewRepository(tx)

		exists, err := repo.ExistsByEmail(ctx, u.Email)
		if err != nil {
			return err
		}
		if exists {
			return core.ConflictError("user already exists")
		}

		return repo.Create(ctx, u)
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, core.ConflictError("user already exists")
		}
		core.SetSpanError(ctx, err)
		return nil, err
	}

	s.users.Prime(ctx, u)

	tokens, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, err
	}

	s.bindSession(ctx, creds, u)

	if err := s.notifier.SendVerificationEmail(ctx, u.Email, rawToken); err != nil {
		s.logger.ErrorContext(ctx, "send verification email failed",
			"user_id", u.ID,
			"error", err,
		)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", u.ID)

	return &AuthResult{User: u, Tokens: *tokens}, nil
}

func (s *Service) Login(
	ctx context.Context,
	creds Credentials,
	req LoginRequest,
) (*AuthResult, error) {
	ctx, span := core.StartSpan(ctx, "auth.Login")
	defer span.End()

	u, newHash, err := s.credentials.Validate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, core.UnauthorizedError("invalid credentials")
		}
		core.SetSpanError(ctx, err)
		return nil, err
	}

	if newHash != "" {
		s.upgradePasswordHash(ctx, u, newHash)
	}

	tokens, err := s.issueTokens(ctx, u)
	if err != nil {
		return nil, err
	}

	s.bindSession(ctx, creds, u)

	return &AuthResult{User: u, Tokens: *tokens}, nil
}

func (s *Service) upgradePasswordHash(
	ctx context.Context,
	u *user.User,
	newHash string,
) {
	if err := user.NewRepository(s.db).UpdatePassword(ctx, u.ID, newHash); err != nil {
		s.logger.WarnContext(ctx, "password rehash failed",
			"user_id", u.ID,
			"error", err,
		)
		return
	}

	u.PasswordHash = newHash
	s.users.Invalidate(ctx, u.ID, u.Email)
}

func (s *Service) issueTokens(ctx context.Context, u *user.User) (*Tokens, error) {
	access, err := s.tokens.IssueAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, err
	}

	refresh, err := s.tokens.IssueRefreshToken(ctx, u.ID, u.Email, u.Role)
	if err != nil {
		return nil, err
	}

	return &Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

// bindSession attaches u to the caller's session. Failure is logged; the
// token credentials already issued stay valid.
func (s *Service) bindSession(ctx context.Context, creds Credentials, u *user.User) {
	if creds.Session == nil {
		return
	}

	err := s.sessions.SetSession(ctx, creds.Session, u.ID, &session.Snapshot{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "set session failed",
			"user_id", u.ID,
			"error", err,
		)
	}
}

// Logout revokes the session user's refresh tokens and destroys the
// session. Without an authenticated session it does nothing; the caller
// clears cookies either way.
func (s *Service) Logout(ctx context.Context, creds Credentials) error {
	ctx, span := core.StartSpan(ctx, "auth.Logout")
	defer span.End()

	if creds.Session == nil || !creds.Session.Authenticated() {
		if creds.Session != nil {
			return s.sessions.ClearSession(ctx, creds.Session)
		}
		return nil
	}

	userID := creds.Session.UserID()
	var email string
	if snap := creds.Session.User(); snap != nil {
		email = snap.Email
	}

	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}

	s.users.Invalidate(ctx, userID, email)

	if err := s.sessions.ClearSession(ctx, creds.Session); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "user logged out", "user_id", userID)
	return nil
}

func (s *Service) RefreshTokens(
	ctx context.Context,
	refreshToken string,
) (*Tokens, error) {
	ctx, span := core.StartSpan(ctx, "auth.RefreshTokens")
	defer span.End()

	if refreshToken == "" {
		return nil, core.UnauthorizedError("refresh token not found")
	}

	invalid := core.NewAppError(
		ErrInvalidRefreshToken,
		"invalid refresh token",
		http.StatusUnauthorized,
		"UNAUTHORIZED",
	)

	v, ok := s.tokens.ValidateRefreshToken(ctx, refreshToken)
	if !ok {
		return nil, invalid
	}
	c := v.Claims

	access, err := s.tokens.IssueAccessToken(c.UserID, c.Email, c.Role)
	if err != nil {
		return nil, err
	}

	next, err := s.tokens.RotateRefreshToken(ctx, v.RecordID, c.UserID, c.Email, c.Role)
	if err != nil {
		if errors.Is(err, core.ErrTokenRevoked) {
			return nil, invalid
		}
		core.SetSpanError(ctx, err)
		return nil, err
	}

	core.AddSpanEvent(ctx, "refresh token rotated",
		attribute.String("record_id", v.RecordID),
	)

	return &Tokens{AccessToken: access, RefreshToken: next}, nil
}

// ResolveIdentity applies the resolver chain to creds.
func (s *Service) ResolveIdentity(
	ctx context.Context,
	creds Credentials,
) (*Identity, bool) {
	return s.resolver.Resolve(ctx, creds)
}

// currentUser loads the user behind creds. A missing identity and a
// deleted user produce the same error.
func (s *Service) currentUser(
	ctx context.Context,
	creds Credentials,
) (*user.User, error) {
	id, ok := s.resolver.Resolve(ctx, creds)
	if !ok {
		return nil, core.UnauthorizedError("authentication required")
	}

	u, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.UnauthorizedError("authentication required")
		}
		return nil, err
	}

	return u, nil
}

func (s *Service) GetProfile(
	ctx context.Context,
	creds Credentials,
) (*user.User, error) {
	return s.currentUser(ctx, creds)
}

func (s *Service) UpdateProfile(
	ctx context.Context,
	creds Credentials,
	req user.UpdateProfileRequest,
) (*user.User, error) {
	current, err := s.currentUser(ctx, creds)
	if err != nil {
		return nil, err
	}

	updated, err := s.users.UpdateProfile(ctx, current.ID, req)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.UnauthorizedError("authentication required")
		}
		return nil, err
	}

	return updated, nil
}

// ChangePassword replaces the password and revokes every refresh token
// of the user. A wrong current password changes nothing.
func (s *Service) ChangePassword(
	ctx context.Context,
	creds Credentials,
	req ChangePasswordRequest,
) error {
	ctx, span := core.StartSpan(ctx, "auth.ChangePassword")
	defer span.End()

	u, err := s.currentUser(ctx, creds)
	if err != nil {
		return err
	}

	ok, err := s.credentials.Compare(u, req.CurrentPassword)
	if err != nil {
		return err
	}
	if !ok {
		return core.BadRequestError("current password is incorrect")
	}

	newHash, err := core.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := user.NewRepository(tx).UpdatePassword(ctx, u.ID, newHash); err != nil {
			return err
		}
		return s.tokens.revokeAll(ctx, NewRepository(tx), u.ID)
	})
	if err != nil {
		return err
	}

	s.users.Invalidate(ctx, u.ID, u.Email)
	s.logger.InfoContext(ctx, "password changed", "user_id", u.ID)
	return nil
}

// DeleteAccount removes the user and its refresh tokens in one
// transaction, then logs the caller out.
func (s *Service) DeleteAccount(
	ctx context.Context,
	creds Credentials,
	req DeleteAccountRequest,
) error {
	ctx, span := core.StartSpan(ctx, "auth.DeleteAccount")
	defer span.End()

	u, err := s.currentUser(ctx, creds)
	if err != nil {
		return err
	}

	if req.Confirmation != DeleteConfirmation {
		return core.BadRequestError(`confirmation must be "DELETE"`)
	}

	ok, err := s.credentials.Compare(u, req.Password)
	if err != nil {
		return err
	}
	if !ok {
		return core.BadRequestError("password is incorrect")
	}

	err = core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := NewRepository(tx).DeleteAllForUser(ctx, u.ID); err != nil {
			return err
		}
		return user.NewRepository(tx).Delete(ctx, u.ID)
	})
	if err != nil {
		return err
	}

	if err := s.Logout(ctx, creds); err != nil {
		return err
	}

	s.users.Invalidate(ctx, u.ID, u.Email)
	s.logger.InfoContext(ctx, "account deleted", "user_id", u.ID)
	return nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	invalid := core.BadRequestError("invalid or expired verification token")
	if token == "" {
		return invalid
	}

	var verified *user.User
	err := core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := user.NewRepository(tx)

		u, err := repo.GetByVerificationToken(ctx, core.HashToken(token))
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return invalid
			}
			return err
		}

		if u.VerificationTokenExpires == nil ||
			!s.now().Before(*u.VerificationTokenExpires) {
			return invalid
		}

		if err := repo.MarkEmailVerified(ctx, u.ID); err != nil {
			return err
		}

		verified = u
		return nil
	})
	if err != nil {
		return err
	}

	s.users.Invalidate(ctx, verified.ID, verified.Email)
	s.logger.InfoContext(ctx, "email verified", "user_id", verified.ID)
	return nil
}

func (s *Service) ResendVerification(ctx context.Context, creds Credentials) error {
	u, err := s.currentUser(ctx, creds)
	if err != nil {
		return err
	}

	if u.EmailVerified {
		return core.BadRequestError("email is already verified")
	}

	rawToken, err := core.GenerateSecureToken(verificationTokenBytes)
	if err != nil {
		return err
	}
	expires := s.now().Add(verificationTokenTTL).UTC()

	err = user.NewRepository(s.db).SetVerificationToken(
		ctx,
		u.ID,
		core.HashToken(rawToken),
		expires,
	)
	if err != nil {
		return err
	}

	s.users.Invalidate(ctx, u.ID, u.Email)

	if err := s.notifier.SendVerificationEmail(ctx, u.Email, rawToken); err != nil {
		s.logger.ErrorContext(ctx, "send verification email failed",
			"user_id", u.ID,
			"error", err,
		)
	}

	return nil
}

func (s *Service) IsEmailVerified(ctx context.Context, userID string) (bool, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, core.NotFoundError("user")
		}
		return false, err
	}
	return u.EmailVerified, nil
}

func (s *Service) RequireVerifiedEmail(ctx context.Context, userID string) error {
	verified, err := s.IsEmailVerified(ctx, userID)
	if err != nil {
		return err
	}
	if !verified {
		return core.ForbiddenError("email verification required")
	}
	return nil
}

// PromoteToAdmin grants the admin role to targetID on behalf of an
// existing admin.
func (s *Service) PromoteToAdmin(
	ctx context.Context,
	targetID, requesterID string,
) (*user.User, error) {
	ctx, span := core.StartSpan(ctx, "auth.PromoteToAdmin",
		attribute.String("target_id", targetID),
	)
	defer span.End()

	var target *user.User
	err := core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := user.NewRepository(tx)

		requester, err := repo.GetByID(ctx, requesterID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return core.UnauthorizedError("user not found")
			}
			return err
		}

		if !requester.IsAdmin() {
			return core.ForbiddenError("only admins can promote users")
		}

		t, err := repo.GetByID(ctx, targetID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return core.NotFoundError("target user")
			}
			return err
		}

		if err := repo.UpdateRole(ctx, t.ID, user.RoleAdmin); err != nil {
			return err
		}

		t.Role = user.RoleAdmin
		target = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.users.Invalidate(ctx, target.ID, target.Email)
	s.logger.InfoContext(ctx, "user promoted to admin",
		"user_id", target.ID,
		"requester_id", requesterID,
	)

	return target, nil
}

// Authenticate resolves the request's credentials to a principal whose
// role comes from the current user record.
func (s *Service) Authenticate(r *http.Request) (*middleware.Principal, error) {
	u, err := s.currentUser(r.Context(), s.CredentialsFromRequest(r))
	if err != nil {
		return nil, err
	}

	return &middleware.Principal{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
	}, nil
}

// CredentialsFromRequest reads the access token cookie, falling back to a
// bearer header, and the session handle.
func (s *Service) CredentialsFromRequest(r *http.Request) Credentials {
	token := ""
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		token = middleware.ExtractToken(r)
	}

	return Credentials{
		AccessToken: token,
		Session:     session.FromContext(r.Context()),
	}
}

// PurgeExpiredTokens is run by the token janitor.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokens.PurgeExpired(ctx)
}
