package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/angelmondragon/benefits-logistics/pkg/logger"
)

// Logging writes one line per request once the handler returns. Server
// errors log at warn so they carry a stack.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := map[string]any{
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if pattern := routePatternOf(r); pattern != "" {
				fields["route"] = pattern
			}
			logRequest(logg, logg.WithFields(ctx, fields), status)
		})
	}
}

func logRequest(logg *logger.Logger, ctx context.Context, status int) {
	switch {
	case status >= http.StatusInternalServerError:
		logg.Warn(ctx, "request failed")
	case status >= http.StatusBadRequest:
		logg.Info(ctx, "request rejected")
	default:
		logg.Info(ctx, "request complete")
	}
}

func routePatternOf(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
