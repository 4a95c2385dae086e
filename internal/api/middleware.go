package api

import (
	"crypto/subtle"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// WithRequestLog attaches a request id and logs one line per completed request.
func WithRequestLog(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Info("request completed",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("latency", time.Since(start)))
	})
}

// WithRecovery converts handler panics into a 500 response.
func WithRecovery(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("panic", err),
					zap.String("path", r.URL.Path),
					zap.String("stack", string(debug.Stack())))
				writeJSON(w, http.StatusInternalServerError,
					map[string]string{"response": "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// WithAuth requires the configured bearer token on every request. Token
// validation policy beyond equality lives outside this service.
func WithAuth(token string, logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			logger.Warn("rejected request with missing or invalid bearer token",
				zap.String("path", r.URL.Path))
			writeJSON(w, http.StatusUnauthorized, map[string]string{"response": "Unauthorized."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Chain applies the standard middleware stack around a handler.
func Chain(logger *zap.Logger, token string, next http.Handler) http.Handler {
	return WithRequestLog(logger, WithRecovery(logger, WithAuth(token, logger, next)))
}
