package security

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cwrk-planet/realtime-service/internal/domain"
)

type UserDirectory interface {
	GetUser(ctx context.Context, id domain.UserID) (domain.Identity, error)
}

// Authenticator turns a bearer credential into a known identity.
type Authenticator struct {
	verifier *TokenVerifier
	users    UserDirectory
}

func NewAuthenticator(verifier *TokenVerifier, users UserDirectory) *Authenticator {
	return &Authenticator{verifier: verifier, users: users}
}

// Authenticate fails with domain.ErrUnauthenticated for bad credentials and
// unknown users. Directory outages are returned as is.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (domain.Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing credential", domain.ErrUnauthenticated)
	}

	claims, err := a.verifier.Verify(credential)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	id, err := SubjectOf(claims)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}

	user, err := a.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Identity{}, fmt.Errorf("%w: user not found", domain.ErrUnauthenticated)
		}
		return domain.Identity{}, fmt.Errorf("lookup user: %w", err)
	}
	if user.DisplayName == "" {
		user.DisplayName = claims.Name
	}
	if user.DisplayName == "" {
		user.DisplayName = string(user.ID)
	}
	return user, nil
}

// CredentialFromRequest looks at ?token=, ?access_token= and the Authorization header, in that order.
func CredentialFromRequest(r *http.Request) string {
	q := r.URL.Query()
	if t := strings.TrimSpace(q.Get("token")); t != "" {
		return t
	}
	if t := strings.TrimSpace(q.Get("access_token")); t != "" {
		return t
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
