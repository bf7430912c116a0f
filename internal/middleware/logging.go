// internal/middleware/logging.go

package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// statusRecorder captures the response code for the request log. Unwrap
// keeps http.ResponseController working through the wrapper so the
// websocket upgrade can still hijack the connection.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// LogMiddleware logs every HTTP request with method, path, status, and
// duration using Logrus.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Info("http request")
		})
	}
}

// LogWebSocketConnect logs an accepted game connection.
func LogWebSocketConnect(logger *logrus.Logger, userID uuid.UUID, remoteAddr string) {
	logger.WithFields(logrus.Fields{
		"user":   userID,
		"remote": remoteAddr,
	}).Info("websocket connected")
}

// LogWebSocketDisconnect logs a closed game connection.
func LogWebSocketDisconnect(logger *logrus.Logger, userID uuid.UUID, err error) {
	fields := logrus.Fields{"user": userID}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("websocket disconnected")
}
