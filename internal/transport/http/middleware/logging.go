package httpmw

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/logger"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
)

// RequestLogger opens a span per request and puts a request scoped logger,
// carrying the request and trace ids, into the context. Must run after chi's RequestID.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	tracer := otel.Tracer("realtime-service/http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path)
			defer span.End()

			args := []any{"method", r.Method, "path", r.URL.Path}
			for _, a := range logger.AttrsFromCtx(ctx) {
				args = append(args, a)
			}
			l := base.With(args...)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logger.WithContext(ctx, l)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			lvl := slog.LevelDebug
			if status >= http.StatusInternalServerError {
				lvl = slog.LevelError
			}
			l.Log(ctx, lvl, "http request",
				"status", status,
				"bytes", ww.BytesWritten(),
				"dur_ms", time.Since(start).Milliseconds())
		})
	}
}
