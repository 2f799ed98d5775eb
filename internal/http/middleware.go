package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/BouzirJawad/cart-micro/internal/logs"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const HeaderXRequestID = "X-Request-Id"

// RequestIDMiddleware reuses the caller's X-Request-Id or generates one, echoes it back,
// and stores it with a request-scoped logger in the request context.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set(HeaderXRequestID, requestID)

			ctx := logs.WithRequestID(r.Context(), requestID)
			ctx = logs.WithLogger(ctx, logger.With(slog.String("request_id", requestID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerMiddleware logs one line per request, at warn for 4xx and error for 5xx.
func LoggerMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			level := slog.LevelInfo
			if status >= 400 {
				level = slog.LevelWarn
			}
			if status >= 500 {
				level = slog.LevelError
			}

			logs.FromContext(r.Context(), logger).LogAttrs(r.Context(), level, "HTTP Request",
				slog.String("method", r.Method),
				slog.String("uri", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("latency", time.Since(start)),
				slog.String("remote_ip", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			)
		})
	}
}
