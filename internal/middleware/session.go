package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yearbook/picker-server-go/internal/audit"
	apperrors "github.com/yearbook/picker-server-go/internal/errors"
	"github.com/yearbook/picker-server-go/internal/httputil"
	"github.com/yearbook/picker-server-go/internal/model"
	"github.com/yearbook/picker-server-go/internal/service"
)

const (
	PickerSessionCookie = "picker_session"
	AdminSessionCookie  = "admin_session"
)

type contextKey string

const (
	BrowserSessionContextKey contextKey = "browserSession"
	AdminSessionContextKey   contextKey = "adminSession"
)

func GetBrowserSession(ctx context.Context) *service.BrowserSession {
	if sess, ok := ctx.Value(BrowserSessionContextKey).(*service.BrowserSession); ok {
		return sess
	}
	return nil
}

func GetAdminSession(ctx context.Context) *model.AdminSession {
	if session, ok := ctx.Value(AdminSessionContextKey).(*model.AdminSession); ok {
		return session
	}
	return nil
}

// Browser Session Middleware

type BrowserSessions interface {
	Get(token string) *service.BrowserSession
	Create() (string, *service.BrowserSession, error)
}

// BrowserSessionMiddleware attaches the caller's selection session to the
// request. Handler only looks sessions up; Ensure also starts one, and is
// mounted on throttled routes so cookieless traffic cannot grow the registry.
type BrowserSessionMiddleware struct {
	sessions BrowserSessions
	secure   bool
}

func NewBrowserSessionMiddleware(sessions BrowserSessions, secure bool) *BrowserSessionMiddleware {
	return &BrowserSessionMiddleware{sessions: sessions, secure: secure}
}

func (m *BrowserSessionMiddleware) lookup(r *http.Request) *service.BrowserSession {
	cookie, err := r.Cookie(PickerSessionCookie)
	if err != nil {
		return nil
	}
	return m.sessions.Get(cookie.Value)
}

func (m *BrowserSessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := m.lookup(r); sess != nil {
			r = r.WithContext(context.WithValue(r.Context(), BrowserSessionContextKey, sess))
		}
		next.ServeHTTP(w, r)
	})
}

// Ensure starts a session when the request has none.
func (m *BrowserSessionMiddleware) Ensure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := GetBrowserSession(r.Context())
		if sess == nil {
			sess = m.lookup(r)
		}

		if sess == nil {
			token, created, err := m.sessions.Create()
			if err != nil {
				log.Error().Err(err).Msg("browser session middleware: create session")
				httputil.WriteError(w, apperrors.Internal("Failed to start session"))
				return
			}
			// Session cookie: gone when the browser closes.
			SetSessionCookie(w, PickerSessionCookie, token, "/", 0, m.secure)
			audit.LogFromRequest(r, audit.Event{
				Type:      audit.EventSessionCreate,
				SessionID: created.ID,
			})
			sess = created
		}

		ctx := context.WithValue(r.Context(), BrowserSessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Admin Session Middleware

type AdminSessionValidator interface {
	Enabled() bool
	ValidateSession(ctx context.Context, token string) (*model.AdminSession, error)
}

type AdminSessionMiddleware struct {
	admin AdminSessionValidator
}

func NewAdminSessionMiddleware(admin AdminSessionValidator) *AdminSessionMiddleware {
	return &AdminSessionMiddleware{admin: admin}
}

func (m *AdminSessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.admin.Enabled() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "Admin not configured",
			})
			return
		}

		cookie, err := r.Cookie(AdminSessionCookie)
		if err != nil || cookie.Value == "" {
			httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
			return
		}

		session, err := m.admin.ValidateSession(r.Context(), cookie.Value)
		if err != nil {
			log.Error().Err(err).Msg("admin session middleware: session lookup")
			httputil.WriteError(w, apperrors.Internal("Session validation failed"))
			return
		}
		if session == nil {
			httputil.WriteError(w, apperrors.Unauthorized("Unauthorized"))
			return
		}

		ctx := context.WithValue(r.Context(), AdminSessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetSessionCookie writes an HttpOnly cookie. A zero maxAge makes it a
// browser-session cookie.
func SetSessionCookie(w http.ResponseWriter, name, token, path string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     path,
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:   name,
		Value:  "",
		Path:   path,
		MaxAge: -1,
	})
}
