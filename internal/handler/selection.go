package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/yearbook/picker-server-go/internal/errors"
	"github.com/yearbook/picker-server-go/internal/httputil"
	"github.com/yearbook/picker-server-go/internal/middleware"
	"github.com/yearbook/picker-server-go/internal/model"
	"github.com/yearbook/picker-server-go/internal/selection"
	"github.com/yearbook/picker-server-go/internal/service"
)

// SelectionHandler exposes the per-browser selection workflow. Only
// POST /code needs a registered session; the other routes answer from an
// empty Idle state when the caller has none.
type SelectionHandler struct {
	selectionService *service.SelectionService
	codeMiddlewares  []func(http.Handler) http.Handler
}

// NewSelectionHandler builds the handler. codeMiddlewares wrap POST /code in
// order; the throttle and the session starter belong there.
func NewSelectionHandler(selectionService *service.SelectionService, codeMiddlewares ...func(http.Handler) http.Handler) *SelectionHandler {
	return &SelectionHandler{
		selectionService: selectionService,
		codeMiddlewares:  codeMiddlewares,
	}
}

func (h *SelectionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/session", h.GetSession)
	r.With(h.codeMiddlewares...).Post("/code", h.SubmitCode)
	r.Post("/selection", h.SelectPhoto)
	r.Post("/confirm", h.Confirm)

	return r
}

// idleSession is what a caller without a session sees.
func idleSession() selection.Session {
	return selection.Session{
		State:  model.SessionStateIdle,
		Photos: []model.Photo{},
	}
}

type sessionResponse struct {
	selection.Session
	CanSubmitCode bool                    `json:"canSubmitCode"`
	CanConfirm    bool                    `json:"canConfirm"`
	SelectedPhoto *model.Photo            `json:"selectedPhoto"`
	Confirmed     *bool                   `json:"confirmed,omitempty"`
	Error         *httputil.ErrorResponse `json:"error,omitempty"`
}

func newSessionResponse(snap selection.Session) sessionResponse {
	resp := sessionResponse{
		Session:       snap,
		CanSubmitCode: snap.CanSubmitCode(),
		CanConfirm:    snap.CanConfirm(),
	}
	if photo, ok := snap.SelectedPhoto(); ok {
		resp.SelectedPhoto = photo
	}
	return resp
}

// writeSession writes the snapshot. A non-nil err sets the status and adds
// an error object next to the state.
func writeSession(w http.ResponseWriter, snap selection.Session, err error) {
	resp := newSessionResponse(snap)
	status := http.StatusOK

	if err != nil {
		appErr, ok := apperrors.AsAppError(err)
		if !ok {
			appErr = apperrors.Internal("An unexpected error occurred")
		}
		resp.Error = &httputil.ErrorResponse{
			Error:   appErr.Message,
			Code:    appErr.Code,
			Details: appErr.Details,
		}
		status = httputil.StatusFromError(appErr)
	}

	writeJSON(w, status, resp)
}

func clientInfo(r *http.Request) service.ClientInfo {
	return service.ClientInfo{IP: middleware.ClientIP(r), UserAgent: r.UserAgent()}
}

func (h *SelectionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetBrowserSession(r.Context())
	if sess == nil {
		writeSession(w, idleSession(), nil)
		return
	}
	writeSession(w, sess.Controller.Snapshot(), nil)
}

// submitCodeRequest is not validated here: an empty code is a controller
// outcome and is reported through lastError.
type submitCodeRequest struct {
	Code string `json:"code"`
}

func (h *SelectionHandler) SubmitCode(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetBrowserSession(r.Context())
	if sess == nil {
		httputil.WriteError(w, apperrors.Internal("Session not started"))
		return
	}

	var req submitCodeRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		httputil.WriteError(w, appErr)
		return
	}

	snap, err := h.selectionService.SubmitCode(r.Context(), sess, req.Code, clientInfo(r))
	writeSession(w, snap, err)
}

type selectPhotoRequest struct {
	URL string `json:"url" validate:"required,max=2048"`
}

func (h *SelectionHandler) SelectPhoto(w http.ResponseWriter, r *http.Request) {
	var req selectPhotoRequest
	if appErr := decodeJSON(r, &req); appErr != nil {
		httputil.WriteError(w, appErr)
		return
	}

	sess := middleware.GetBrowserSession(r.Context())
	if sess == nil {
		writeSession(w, idleSession(), apperrors.NoRecordResolved())
		return
	}

	snap, err := h.selectionService.SelectPhoto(sess, req.URL)
	writeSession(w, snap, err)
}

func (h *SelectionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetBrowserSession(r.Context())
	if sess == nil {
		resp := newSessionResponse(idleSession())
		resp.Confirmed = new(bool)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	snap, confirmed, err := h.selectionService.ConfirmSelection(r.Context(), sess, clientInfo(r))
	if err != nil {
		writeSession(w, snap, err)
		return
	}

	resp := newSessionResponse(snap)
	resp.Confirmed = &confirmed
	writeJSON(w, http.StatusOK, resp)
}
