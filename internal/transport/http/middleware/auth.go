package httpmw

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/internal/logger"
	"github.com/cwrk-planet/realtime-service/internal/protocol"
	"github.com/cwrk-planet/realtime-service/internal/security"
)

type ctxKey string

const ctxKeyIdentity ctxKey = "identity"

type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (domain.Identity, error)
}

// AuthMiddleware требует валидный bearer токен и кладёт identity в контекст.
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := auth.Authenticate(r.Context(), security.CredentialFromRequest(r))
			if err != nil {
				status := http.StatusUnauthorized
				if !errors.Is(err, domain.ErrUnauthenticated) {
					status = http.StatusServiceUnavailable
					logger.FromContext(r.Context()).Error("http authenticate failed", "err", err)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(status)
				_ = json.NewEncoder(w).Encode(protocol.ErrorFor(err))
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyIdentity, id)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With("user", id.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func IdentityFromCtx(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(domain.Identity)
	return id, ok
}
