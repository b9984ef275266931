package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yearbook/picker-server-go/internal/metrics"
	"github.com/yearbook/picker-server-go/internal/middleware"
	"github.com/yearbook/picker-server-go/internal/model"
	"github.com/yearbook/picker-server-go/internal/selection"
	"github.com/yearbook/picker-server-go/internal/service"
)

type stubStore struct {
	mu        sync.Mutex
	students  []model.Student
	photos    []model.Photo
	updateErr error
	updates   []model.ChoiceUpdate
}

func (s *stubStore) FindByAccessCode(_ context.Context, code string) ([]model.Student, error) {
	var out []model.Student
	for _, st := range s.students {
		if st.AccessCode == code {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *stubStore) ListPhotos(_ context.Context, _ string) ([]model.Photo, error) {
	return s.photos, nil
}

func (s *stubStore) UpdateChoice(_ context.Context, _ string, choice model.ChoiceUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, choice)
	return nil
}

type stubPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *stubPublisher) Publish(_ context.Context, topic, eventType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, topic+":"+eventType)
	return nil
}

type selectionFixture struct {
	store     *stubStore
	publisher *stubPublisher
	router    http.Handler
}

func newSelectionFixture(t *testing.T) *selectionFixture {
	t.Helper()

	store := &stubStore{
		students: []model.Student{{ID: "r1", FirstName: "Ana", LastName: "Cruz", AccessCode: "ABC123"}},
		photos: []model.Photo{
			{URL: "p2", OriginalName: "IMG_0002.jpg", CapturedAt: time.Unix(200, 0)},
			{URL: "p1", OriginalName: "IMG_0001.jpg", CapturedAt: time.Unix(100, 0)},
		},
	}
	publisher := &stubPublisher{}
	sess := &service.BrowserSession{
		ID:         "sess-1",
		Controller: selection.NewController(store),
		CreatedAt:  time.Now(),
	}

	h := NewSelectionHandler(service.NewSelectionService(metrics.New(), publisher))
	withSession := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.BrowserSessionContextKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}

	return &selectionFixture{
		store:     store,
		publisher: publisher,
		router:    withSession(h.Routes()),
	}
}

func (f *selectionFixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	return rec, parsed
}

func TestSelectionHandler_GetSession(t *testing.T) {
	f := newSelectionFixture(t)

	rec, body := f.do(t, http.MethodGet, "/session", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "idle", body["state"])
	assert.Equal(t, true, body["canSubmitCode"])
	assert.Equal(t, false, body["canConfirm"])
	assert.Nil(t, body["record"])
	assert.Equal(t, []any{}, body["photos"])
}

func TestSelectionHandler_SubmitCode(t *testing.T) {
	t.Run("resolves record and sorts photos", func(t *testing.T) {
		f := newSelectionFixture(t)

		rec, body := f.do(t, http.MethodPost, "/code", `{"code":"  ABC123 "}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ready", body["state"])
		assert.Equal(t, "ABC123", body["enteredCode"])
		assert.Equal(t, "r1", body["resolvedRecordId"])
		assert.Equal(t, "p1", body["currentSelectionUrl"])
		assert.Equal(t, true, body["canConfirm"])
		assert.Equal(t, "IMG_0001.jpg", body["selectedPhoto"].(map[string]any)["originalName"])

		record := body["record"].(map[string]any)
		assert.Equal(t, "Ana", record["firstName"])
		assert.NotContains(t, record, "accessCode")

		photos := body["photos"].([]any)
		require.Len(t, photos, 2)
		assert.Equal(t, "p1", photos[0].(map[string]any)["url"])
	})

	t.Run("empty code is a validation error in state and status", func(t *testing.T) {
		f := newSelectionFixture(t)

		rec, body := f.do(t, http.MethodPost, "/code", `{"code":"   "}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "empty code", body["lastError"])
		assert.Equal(t, "idle", body["state"])
		errObj := body["error"].(map[string]any)
		assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
	})

	t.Run("missing body behaves like an empty code", func(t *testing.T) {
		f := newSelectionFixture(t)

		rec, body := f.do(t, http.MethodPost, "/code", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "empty code", body["lastError"])
	})

	t.Run("unknown code returns 404", func(t *testing.T) {
		f := newSelectionFixture(t)

		rec, body := f.do(t, http.MethodPost, "/code", `{"code":"NOPE"}`)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "invalid code", body["lastError"])
		assert.Nil(t, body["record"])
	})

	t.Run("malformed JSON is rejected before the controller", func(t *testing.T) {
		f := newSelectionFixture(t)

		rec, body := f.do(t, http.MethodPost, "/code", `{"code":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_INPUT", body["code"])
	})
}

func TestSelectionHandler_SelectPhoto(t *testing.T) {
	t.Run("conflict without a record", func(t *testing.T) {
		f := newSelectionFixture(t)

		rec, body := f.do(t, http.MethodPost, "/selection", `{"url":"p2"}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "NO_RECORD_RESOLVED", body["error"].(map[string]any)["code"])
	})

	t.Run("updates selection", func(t *testing.T) {
		f := newSelectionFixture(t)
		f.do(t, http.MethodPost, "/code", `{"code":"ABC123"}`)

		rec, body := f.do(t, http.MethodPost, "/selection", `{"url":"p2"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "p2", body["currentSelectionUrl"])
	})

	t.Run("validates url", func(t *testing.T) {
		f := newSelectionFixture(t)

		rec, body := f.do(t, http.MethodPost, "/selection", `{"url":""}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
		assert.Equal(t, map[string]any{"url": "required"}, body["details"])
	})
}

func TestSelectionHandler_Confirm(t *testing.T) {
	t.Run("no-op before a code is resolved", func(t *testing.T) {
		f := newSelectionFixture(t)

		rec, body := f.do(t, http.MethodPost, "/confirm", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, body["confirmed"])
		assert.Empty(t, f.store.updates)
	})

	t.Run("writes choice and publishes", func(t *testing.T) {
		f := newSelectionFixture(t)
		f.do(t, http.MethodPost, "/code", `{"code":"ABC123"}`)
		f.do(t, http.MethodPost, "/selection", `{"url":"p2"}`)

		rec, body := f.do(t, http.MethodPost, "/confirm", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["confirmed"])
		assert.Equal(t, "confirmed", body["lastNotice"])
		record := body["record"].(map[string]any)
		assert.Equal(t, true, record["hasChosen"])
		assert.Equal(t, "IMG_0002.jpg", record["chosenPhotoName"])

		require.Len(t, f.store.updates, 1)
		assert.Equal(t, "p2", f.store.updates[0].PhotoURL)
		assert.Equal(t, []string{"choices:choice_confirmed"}, f.publisher.events)
	})

	t.Run("store failure returns 503 with state", func(t *testing.T) {
		f := newSelectionFixture(t)
		f.do(t, http.MethodPost, "/code", `{"code":"ABC123"}`)
		f.store.updateErr = errors.New("write refused")

		rec, body := f.do(t, http.MethodPost, "/confirm", "")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "update failed", body["lastError"])
		assert.Equal(t, "ready", body["state"])
		assert.Equal(t, "TRANSIENT_ERROR", body["error"].(map[string]any)["code"])
		assert.Empty(t, f.publisher.events)
	})
}

func TestSelectionHandler_WithoutSession(t *testing.T) {
	router := NewSelectionHandler(service.NewSelectionService(metrics.New(), &stubPublisher{})).Routes()

	t.Run("session reads as idle", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"state":"idle"`)
		assert.Contains(t, rec.Body.String(), `"canSubmitCode":true`)
		assert.Contains(t, rec.Body.String(), `"selectedPhoto":null`)
	})

	t.Run("selection has no record", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/selection", strings.NewReader(`{"url":"p1"}`)))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "NO_RECORD_RESOLVED")
	})

	t.Run("confirm is a no-op", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/confirm", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"confirmed":false`)
	})
}

func TestSelectionHandler_SessionsStartOnlyOnCodeSubmit(t *testing.T) {
	store := &stubStore{
		students: []model.Student{{ID: "r1", FirstName: "Ana", AccessCode: "ABC123"}},
	}
	m := metrics.New()
	sessions := service.NewSessionService(store, "secret", time.Hour, m)
	sessionMiddleware := middleware.NewBrowserSessionMiddleware(sessions, false)
	h := NewSelectionHandler(service.NewSelectionService(m, &stubPublisher{}), sessionMiddleware.Ensure)
	router := sessionMiddleware.Handler(h.Routes())

	for i := 0; i < 1000; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Empty(t, rec.Result().Cookies())
	}
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/confirm", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 0, sessions.Count())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/code", strings.NewReader(`{"code":"ABC123"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sessions.Count())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"ready"`)
	assert.Equal(t, 1, sessions.Count())
}

func TestSelectionHandler_CodeMiddlewaresWrapSubmit(t *testing.T) {
	var limited int
	limiter := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limited++
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	h := NewSelectionHandler(service.NewSelectionService(metrics.New(), &stubPublisher{}), limiter)
	router := h.Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/code", strings.NewReader(`{"code":"x"}`)))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, limited)
}
