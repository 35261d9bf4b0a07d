// Package middleware provides reusable HTTP middleware for the API server.
package middleware

import (
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/techspire01/ciadev/internal/logger"
)

// wrappedWriter captures the status code written by downstream handlers.
type wrappedWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *wrappedWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logger attaches a request-scoped zap logger to the context and logs method,
// path, status code and duration for every request. Rejections (401, 403,
// 429) are logged at warn with the client address.
func Logger(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			log := base.With(zap.String("request_id", chiMiddleware.GetReqID(r.Context())))
			ctx := logger.WithContext(r.Context(), log)

			ww := &wrappedWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(ww, r.WithContext(ctx))

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.statusCode),
				zap.Duration("duration", time.Since(start)),
			}
			switch ww.statusCode {
			case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
				log.Warn("security: request rejected",
					append(fields, zap.String("remote_addr", r.RemoteAddr))...)
			default:
				log.Info("request", fields...)
			}
		})
	}
}
