// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/auth-backend/internal/core"
	"github.com/carterperez-dev/templates/auth-backend/internal/session"
	"github.com/carterperez-dev/templates/auth-backend/internal/user"
)

type Handler struct {
	service   *Service
	cookies   *CookieWriter
	sessions  *session.Manager
	validator *validator.Validate
}

func NewHandler(
	service *Service,
	cookies *CookieWriter,
	sessions *session.Manager,
) *Handler {
	return &Handler{
		service:   service,
		cookies:   cookies,
		sessions:  sessions,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts /auth. limiter guards the credential endpoints;
// authenticator and adminOnly guard the admin profile.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	limiter, authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiter)
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)
		})

		r.Post("/logout", h.Logout)
		r.Get("/profile", h.GetProfile)
		r.Patch("/profile", h.UpdateProfile)
		r.Post("/change-password", h.ChangePassword)
		r.Delete("/account", h.DeleteAccount)
		r.Get("/verify-email", h.VerifyEmail)
		r.Post("/resend-verification", h.ResendVerification)
		r.Get("/email-status", h.EmailStatus)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Use(adminOnly)
			r.Get("/admin-profile", h.AdminProfile)
		})
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Register(
		r.Context(),
		h.service.CredentialsFromRequest(r),
		req,
	)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.cookies.SetTokens(w, res.Tokens)
	h.flushSession(w, r)
	core.Created(w, user.ToUserResponse(res.User))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Login(
		r.Context(),
		h.service.CredentialsFromRequest(r),
		req,
	)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.cookies.SetTokens(w, res.Tokens)
	h.flushSession(w, r)
	core.OK(w, user.ToUserResponse(res.User))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	err := h.service.Logout(r.Context(), h.service.CredentialsFromRequest(r))

	h.cookies.ClearAll(w)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.flushSession(w, r)
	core.OK(w, MessageResponse{Message: "logged out"})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.service.RefreshTokens(
		r.Context(),
		RefreshTokenFromRequest(r),
	)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			h.cookies.ClearRefresh(w)
		}
		h.fail(w, r, err)
		return
	}

	h.cookies.SetTokens(w, *tokens)
	core.OK(w, MessageResponse{Message: "tokens refreshed"})
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetProfile(r.Context(), h.service.CredentialsFromRequest(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	core.OK(w, user.ToUserResponse(u))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req user.UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	u, err := h.service.UpdateProfile(
		r.Context(),
		h.service.CredentialsFromRequest(r),
		req,
	)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	core.OK(w, user.ToUserResponse(u))
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.ChangePassword(
		r.Context(),
		h.service.CredentialsFromRequest(r),
		req,
	)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	core.OK(w, MessageResponse{Message: "password changed"})
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req DeleteAccountRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.DeleteAccount(
		r.Context(),
		h.service.CredentialsFromRequest(r),
		req,
	)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.cookies.ClearAll(w)
	h.flushSession(w, r)
	core.OK(w, MessageResponse{Message: "account deleted"})
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.service.VerifyEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		h.fail(w, r, err)
		return
	}

	core.OK(w, MessageResponse{Message: "email verified"})
}

func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	err := h.service.ResendVerification(
		r.Context(),
		h.service.CredentialsFromRequest(r),
	)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	core.OK(w, MessageResponse{Message: "verification email sent"})
}

func (h *Handler) EmailStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.service.ResolveIdentity(
		r.Context(),
		h.service.CredentialsFromRequest(r),
	)
	if !ok {
		h.fail(w, r, core.UnauthorizedError("authentication required"))
		return
	}

	verified, err := h.service.IsEmailVerified(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	core.OK(w, EmailStatusResponse{EmailVerified: verified})
}

func (h *Handler) AdminProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetProfile(r.Context(), h.service.CredentialsFromRequest(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	core.OK(w, user.ToUserResponse(u))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

// flushSession must run before the body is written.
func (h *Handler) flushSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.WriteCookie(w, session.FromContext(r.Context()))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.flushSession(w, r)

	if !core.IsAppError(err) {
		h.service.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err,
		)
	}

	core.JSONError(w, err)
}
