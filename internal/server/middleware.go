package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/ketchalegend/vibeflow/internal/shared"
	"golang.org/x/time/rate"
)

type loggerKey struct{}

// LoggerFrom returns the request-scoped logger attached by [RequestLogger],
// or the fallback when none is present.
func LoggerFrom(ctx context.Context, fallback *log.Logger) *log.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*log.Logger); ok {
		return l
	}
	return fallback
}

// RequestLogger attaches a child logger carrying a generated request id to
// the request context and logs one line per request with method, path,
// status, and duration.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := shared.WithLogger(logger, "request_id", uuid.New().String())

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r.WithContext(context.WithValue(r.Context(), loggerKey{}, reqLogger)))

			reqLogger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.status,
				"duration", time.Since(start))
		})
	}
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RateLimit rejects requests above the configured rate with 429. One shared
// limiter guards the whole service, mirroring the upstream quota it protects.
func RateLimit(limiter *rate.Limiter, logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				logger.Warn("request rate limited", "path", r.URL.Path)
				WriteJSON(w, http.StatusTooManyRequests, errorResponse{Error: "Too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout bounds each request's context so a slow upstream cannot hang the
// request indefinitely.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession resolves the session cookie into a stored session and
// attaches it to the request context. Requests without a valid session are
// rejected with 401, as are sessions whose access token has expired with no
// refresh token to recover it.
func RequireSession(store *SessionStore, logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := LoggerFrom(r.Context(), logger)

			cookie, err := r.Cookie(SessionCookie)
			if err != nil {
				WriteError(w, reqLogger, shared.ErrNotAuthenticated)
				return
			}

			sess := store.Get(cookie.Value)
			if sess == nil {
				WriteError(w, reqLogger, shared.ErrNotAuthenticated)
				return
			}
			if err := sess.Validate(); err != nil {
				WriteError(w, reqLogger, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err))
				return
			}
			if sess.Expired(time.Now()) && sess.RefreshToken == "" {
				WriteError(w, reqLogger, fmt.Errorf("%w: access token expired", shared.ErrNotAuthenticated))
				return
			}

			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
		})
	}
}
