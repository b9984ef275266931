package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/yearbook/picker-server-go/internal/audit"
	apperrors "github.com/yearbook/picker-server-go/internal/errors"
	"github.com/yearbook/picker-server-go/internal/httputil"
	"github.com/yearbook/picker-server-go/internal/middleware"
	"github.com/yearbook/picker-server-go/internal/model"
)

// AdminService is the part of service.AdminService the handler needs.
type AdminService interface {
	Login(ctx context.Context, password string) (string, *model.AdminSession, error)
	Logout(ctx context.Context, token string) error
	ListStudents(ctx context.Context, filter model.StudentFilter) ([]model.Student, int, error)
	GetStudent(ctx context.Context, id string) (*model.Student, []model.Photo, error)
	GetStats(ctx context.Context) (*model.SelectionStats, error)
}

type AdminHandler struct {
	adminService      AdminService
	sessionMiddleware func(http.Handler) http.Handler
	loginRateLimiter  func(http.Handler) http.Handler
	events            http.Handler
	sessionTTL        time.Duration
	isProduction      bool
}

func NewAdminHandler(
	adminService AdminService,
	sessionMiddleware func(http.Handler) http.Handler,
	loginRateLimiter func(http.Handler) http.Handler,
	events http.Handler,
	sessionTTL time.Duration,
	isProduction bool,
) *AdminHandler {
	if loginRateLimiter == nil {
		loginRateLimiter = passthrough
	}
	return &AdminHandler{
		adminService:      adminService,
		sessionMiddleware: sessionMiddleware,
		loginRateLimiter:  loginRateLimiter,
		events:            events,
		sessionTTL:        sessionTTL,
		isProduction:      isProduction,
	}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.loginRateLimiter).Post("/api/login", h.Login)
	r.Post("/api/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(h.sessionMiddleware)
		r.Get("/api/me", h.Me)
		r.Get("/api/stats", h.Stats)
		r.Get("/api/students", h.ListStudents)
		r.Get("/api/students/{id}", h.GetStudent)
		if h.events != nil {
			r.Get("/api/events", h.events.ServeHTTP)
		}
	})

	return r
}

type loginRequest struct {
	Password string `json:"password" validate:"required,max=256"`
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		httputil.WriteError(w, appErr)
		return
	}

	token, session, err := h.adminService.Login(r.Context(), req.Password)
	if err != nil {
		if !apperrors.IsAppError(err) {
			log.Error().Err(err).Msg("admin login error")
		}
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventLoginFailure,
			Details: map[string]interface{}{"reason": string(apperrors.GetCode(err))},
		})
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventLoginSuccess,
		SessionID: session.ID,
	})

	middleware.SetSessionCookie(w, middleware.AdminSessionCookie, token, "/admin", h.sessionTTL, h.isProduction)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"expiresAt": session.ExpiresAt,
	})
}

func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.AdminSessionCookie)
	if err == nil && cookie.Value != "" {
		if err := h.adminService.Logout(r.Context(), cookie.Value); err != nil {
			log.Warn().Err(err).Msg("admin logout: delete session")
		}
		audit.LogFromRequest(r, audit.Event{Type: audit.EventLogout})
	}

	middleware.ClearSessionCookie(w, middleware.AdminSessionCookie, "/admin")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AdminHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, middleware.GetAdminSession(r.Context()))
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.GetStats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get stats")
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)

	students, total, err := h.adminService.ListStudents(r.Context(), model.StudentFilter{
		HasChosen: parseOptionalBool(r, "chosen"),
		Limit:     p.Limit,
		Offset:    p.Offset,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to list students")
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  students,
		"total":  total,
		"limit":  p.Limit,
		"offset": p.Offset,
	})
}

func (h *AdminHandler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	student, photos, err := h.adminService.GetStudent(r.Context(), id)
	if err != nil {
		if !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			log.Error().Err(err).Str("studentId", id).Msg("failed to get student")
		}
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"student": student,
		"photos":  photos,
	})
}

func passthrough(next http.Handler) http.Handler {
	return next
}
