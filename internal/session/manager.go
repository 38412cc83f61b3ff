// AngelaMos | 2026
// manager.go

package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/securecookie"
)

type contextKey struct{}

// Handle is the per-request view of a session. It is not safe for
// concurrent use.
type Handle struct {
	id      string
	record  *Record
	dirty   bool
	cleared bool
}

func (h *Handle) ID() string {
	return h.id
}

func (h *Handle) UserID() string {
	if h.record == nil {
		return ""
	}
	return h.record.UserID
}

func (h *Handle) User() *Snapshot {
	if h.record == nil {
		return nil
	}
	return h.record.User
}

func (h *Handle) Authenticated() bool {
	return h.UserID() != ""
}

// Cleared reports whether the cookie is scheduled for removal.
func (h *Handle) Cleared() bool {
	return h.cleared
}

type CookieConfig struct {
	Name   string
	Path   string
	Secure bool
}

type Manager struct {
	store  *Store
	codec  *securecookie.SecureCookie
	cookie CookieConfig
	logger *slog.Logger
}

func NewManager(
	store *Store,
	secret string,
	cookie CookieConfig,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	// Cookies older than the session TTL fail decoding even if the
	// record is still around.
	codec := securecookie.New([]byte(secret), nil).
		MaxAge(int(store.TTL().Seconds())).
		SetSerializer(securecookie.JSONEncoder{})

	return &Manager{
		store:  store,
		codec:  codec,
		cookie: cookie,
		logger: logger,
	}
}

// Middleware attaches a Handle to every request. A missing, tampered or
// expired cookie yields an empty handle.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := m.load(r)
		ctx := context.WithValue(r.Context(), contextKey{}, h)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Manager) load(r *http.Request) *Handle {
	c, err := r.Cookie(m.cookie.Name)
	if err != nil || c.Value == "" {
		return &Handle{}
	}

	var id string
	if err := m.codec.Decode(m.cookie.Name, c.Value, &id); err != nil || id == "" {
		return &Handle{}
	}

	rec, err := m.store.Get(r.Context(), id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.WarnContext(r.Context(), "session load failed",
				"error", err,
			)
		}
		return &Handle{}
	}

	return &Handle{id: id, record: rec}
}

// FromContext returns the request's handle, or an empty one when the
// middleware did not run.
func FromContext(ctx context.Context) *Handle {
	if h, ok := ctx.Value(contextKey{}).(*Handle); ok {
		return h
	}
	return &Handle{}
}

// SetSession binds userID to the handle under a freshly generated id and
// persists the record.
func (m *Manager) SetSession(
	ctx context.Context,
	h *Handle,
	userID string,
	snap *Snapshot,
) error {
	id, err := m.store.Regenerate(ctx, h.id)
	if err != nil {
		return err
	}

	rec := &Record{UserID: userID, User: snap}
	if err := m.store.Set(ctx, id, rec); err != nil {
		return err
	}

	h.id = id
	h.record = rec
	h.dirty = true
	h.cleared = false
	return nil
}

// ClearSession evicts the record and schedules the cookie for removal.
// Calling it on an empty or already cleared handle is a no-op.
func (m *Manager) ClearSession(ctx context.Context, h *Handle) error {
	if h.id != "" {
		if err := m.store.Destroy(ctx, h.id); err != nil {
			return err
		}
	}

	h.id = ""
	h.record = nil
	h.dirty = false
	h.cleared = true
	return nil
}

// WriteCookie emits the Set-Cookie header the handle's state calls for.
func (m *Manager) WriteCookie(w http.ResponseWriter, h *Handle) {
	switch {
	case h.cleared:
		http.SetCookie(w, &http.Cookie{
			Name:     m.cookie.Name,
			Value:    "",
			Path:     m.cookie.Path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   m.cookie.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	case h.dirty && h.id != "":
		value, err := m.codec.Encode(m.cookie.Name, h.id)
		if err != nil {
			m.logger.Error("encode session cookie failed", "error", err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     m.cookie.Name,
			Value:    value,
			Path:     m.cookie.Path,
			MaxAge:   int(m.store.TTL().Seconds()),
			HttpOnly: true,
			Secure:   m.cookie.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
