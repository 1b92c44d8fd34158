package security

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"github.com/golang-jwt/jwt"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidIssuer   = errors.New("invalid issuer")
	ErrInvalidAudience = errors.New("invalid audience")
	ErrTokenExpired    = errors.New("token expired or not valid yet")
	ErrInvalidSubject  = errors.New("invalid subject")
)

// AccessClaims accepts tokens from the auth service (sub) and legacy ones that carry the user in "id".
type AccessClaims struct {
	jwt.StandardClaims
	UserID string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Valid is a no-op: time claims are checked in Verify with clock skew.
func (c AccessClaims) Valid() error { return nil }

// TokenVerifier проверяет access-токены. Подпись RS256 (публичный ключ auth-service) или HS256 (общий секрет).
type TokenVerifier struct {
	method    jwt.SigningMethod
	key       any
	issuer    string
	audience  string
	clockSkew time.Duration

	now func() time.Time
}

func NewRS256Verifier(public *rsa.PublicKey, issuer, audience string, clockSkew time.Duration) *TokenVerifier {
	return &TokenVerifier{
		method:    jwt.SigningMethodRS256,
		key:       public,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
		now:       time.Now,
	}
}

func NewHS256Verifier(secret []byte, issuer, audience string, clockSkew time.Duration) *TokenVerifier {
	return &TokenVerifier{
		method:    jwt.SigningMethodHS256,
		key:       secret,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
		now:       time.Now,
	}
}

func (v *TokenVerifier) Verify(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != v.method.Alg() {
			return nil, ErrInvalidToken
		}
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, ErrInvalidIssuer
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return nil, ErrInvalidAudience
	}

	now := v.now()
	if claims.ExpiresAt != 0 && now.After(time.Unix(claims.ExpiresAt, 0).Add(v.clockSkew)) {
		return nil, ErrTokenExpired
	}
	if claims.NotBefore != 0 && now.Before(time.Unix(claims.NotBefore, 0).Add(-v.clockSkew)) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

// SubjectOf returns sub, falling back to the id claim.
func SubjectOf(claims *AccessClaims) (domain.UserID, error) {
	if claims == nil {
		return "", ErrInvalidSubject
	}
	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		sub = strings.TrimSpace(claims.UserID)
	}
	if sub == "" {
		return "", ErrInvalidSubject
	}
	return domain.UserID(sub), nil
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(b)
}
