package httpmw

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/logger"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type authFunc func(ctx context.Context, credential string) (domain.Identity, error)

func (f authFunc) Authenticate(ctx context.Context, credential string) (domain.Identity, error) {
	return f(ctx, credential)
}

func TestAuthMiddleware(t *testing.T) {
	auth := authFunc(func(_ context.Context, cred string) (domain.Identity, error) {
		switch cred {
		case "good":
			return domain.Identity{ID: "u1", DisplayName: "Ann"}, nil
		case "down":
			return domain.Identity{}, errors.New("directory down")
		default:
			return domain.Identity{}, domain.ErrUnauthenticated
		}
	})

	var seen domain.Identity
	h := AuthMiddleware(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromCtx(r.Context())
	}))

	cases := []struct {
		header string
		want   int
	}{
		{"Bearer good", http.StatusOK},
		{"", http.StatusUnauthorized},
		{"Bearer bad", http.StatusUnauthorized},
		{"Bearer down", http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Errorf("%q: status = %d, want %d", tc.header, rec.Code, tc.want)
		}
	}
	if seen.ID != "u1" {
		t.Fatalf("identity not propagated: %+v", seen)
	}
}

func TestRequestLogger_TraceIDs(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := middleware.RequestID(RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusAccepted)
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	out := buf.String()
	for _, want := range []string{`"msg":"inside"`, `"trace_id"`, `"request_id"`, `"status":202`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output lacks %s:\n%s", want, out)
		}
	}
}
