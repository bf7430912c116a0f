// internal/middleware/logging_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogMiddlewareRecordsStatus(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	rec := httptest.NewRecorder()
	LogMiddleware(logger)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/nope", nil))

	entries := hook.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "http request", entries[0].Message)
	assert.Equal(t, http.MethodGet, entries[0].Data["method"])
	assert.Equal(t, "/rooms/nope", entries[0].Data["path"])
	assert.Equal(t, http.StatusNotFound, entries[0].Data["status"])
}

func TestLogMiddlewareDefaultsToOK(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	LogMiddleware(logger)(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/rooms", nil))

	entries := hook.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, http.StatusOK, entries[0].Data["status"])
}

func TestWebSocketLogHelpers(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	id := uuid.New()

	LogWebSocketConnect(logger, id, "10.0.0.1:4242")
	LogWebSocketDisconnect(logger, id, nil)

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, id, entries[0].Data["user"])
	assert.Equal(t, "websocket connected", entries[0].Message)
	assert.Equal(t, "websocket disconnected", entries[1].Message)
	_, hasErr := entries[1].Data["error"]
	assert.False(t, hasErr)
}
