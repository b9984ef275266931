package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yearbook/picker-server-go/internal/middleware"
	"github.com/yearbook/picker-server-go/internal/sse"
)

type fakeSubscriber struct {
	mu           sync.Mutex
	client       *sse.Client
	unsubscribed bool
}

func (f *fakeSubscriber) Subscribe(topic string) *sse.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.client = &sse.Client{Topic: topic, Events: make(chan sse.Event, 4), Done: make(chan struct{})}
	return f.client
}

func (f *fakeSubscriber) Unsubscribe(client *sse.Client) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = true
}

// flushRecorder signals every flush so tests can step through a stream.
type flushRecorder struct {
	*httptest.ResponseRecorder
	flushed chan struct{}
}

func (r *flushRecorder) Flush() {
	r.ResponseRecorder.Flush()
	r.flushed <- struct{}{}
}

func waitFlush(t *testing.T, rec *flushRecorder) {
	t.Helper()
	select {
	case <-rec.flushed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for flush")
	}
}

func TestEventsHandler_RequiresAdminSession(t *testing.T) {
	handler := NewEventsHandler(&fakeSubscriber{}, sse.TopicChoices)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unauthorized")
}

func TestEventsHandler_Streams(t *testing.T) {
	sub := &fakeSubscriber{}
	handler := NewEventsHandler(sub, sse.TopicChoices)

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(),
		middleware.AdminSessionContextKey, testAdminSession))
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := &flushRecorder{ResponseRecorder: httptest.NewRecorder(), flushed: make(chan struct{}, 4)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()

	waitFlush(t, rec)

	sub.mu.Lock()
	client := sub.client
	sub.mu.Unlock()
	require.NotNil(t, client)
	assert.Equal(t, sse.TopicChoices, client.Topic)

	client.Events <- sse.Event{Type: "choice_confirmed", Data: json.RawMessage(`{"studentId":"r1"}`)}
	waitFlush(t, rec)

	cancel()
	<-done

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: connected\ndata: {\"topic\":\"choices\"}\n\n")
	assert.Contains(t, body, "event: choice_confirmed\ndata: {\"studentId\":\"r1\"}\n\n")
	assert.True(t, sub.unsubscribed)
}

func TestEventsHandler_ClosedByBroker(t *testing.T) {
	sub := &fakeSubscriber{}
	handler := NewEventsHandler(sub, sse.TopicChoices)

	ctx := context.WithValue(context.Background(), middleware.AdminSessionContextKey, testAdminSession)
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := &flushRecorder{ResponseRecorder: httptest.NewRecorder(), flushed: make(chan struct{}, 4)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()

	waitFlush(t, rec)
	sub.mu.Lock()
	close(sub.client.Done)
	sub.mu.Unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after broker close")
	}
}

func TestEventsHandler_sendRawEvent(t *testing.T) {
	handler := &EventsHandler{}
	rec := httptest.NewRecorder()

	err := handler.sendRawEvent(rec, rec, sse.Event{
		Type: "choice_confirmed",
		Data: json.RawMessage(`{"photoUrl": "p1"}`),
	})

	assert.NoError(t, err)
	assert.Equal(t, "event: choice_confirmed\ndata: {\"photoUrl\": \"p1\"}\n\n", rec.Body.String())
}
