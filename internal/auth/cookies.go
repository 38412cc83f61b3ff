// AngelaMos | 2026
// cookies.go

package auth

import (
	"net/http"
	"time"

	"github.com/carterperez-dev/templates/auth-backend/internal/config"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

// CookieWriter sets and clears the two token cookies. The refresh cookie is
// scoped to the refresh endpoint so it is never sent anywhere else.
type CookieWriter struct {
	cfg        config.CookieConfig
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCookieWriter(
	cfg config.CookieConfig,
	accessTTL, refreshTTL time.Duration,
) *CookieWriter {
	return &CookieWriter{
		cfg:        cfg,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (c *CookieWriter) SetTokens(w http.ResponseWriter, t Tokens) {
	c.SetAccess(w, t.AccessToken)
	c.SetRefresh(w, t.RefreshToken)
}

func (c *CookieWriter) SetAccess(w http.ResponseWriter, token string) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, token, c.cfg.APIPath, c.accessTTL))
}

func (c *CookieWriter) SetRefresh(w http.ResponseWriter, token string) {
	http.SetCookie(w, c.cookie(RefreshTokenCookie, token, c.cfg.RefreshPath, c.refreshTTL))
}

func (c *CookieWriter) ClearAccess(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, "", c.cfg.APIPath, -1))
}

func (c *CookieWriter) ClearRefresh(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(RefreshTokenCookie, "", c.cfg.RefreshPath, -1))
}

func (c *CookieWriter) ClearAll(w http.ResponseWriter) {
	c.ClearAccess(w)
	c.ClearRefresh(w)
}

func (c *CookieWriter) cookie(
	name, value, path string,
	ttl time.Duration,
) *http.Cookie {
	maxAge := int(ttl.Seconds())
	if ttl < 0 {
		maxAge = -1
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func RefreshTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		return c.Value
	}
	return ""
}
