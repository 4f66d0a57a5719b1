// Package auth implements the OAuth2 authorization-code flow that links
// an IFTTT applet to a tenant's subdomain, and the bearer-token
// validation the dispatcher runs on every subsequent IFTTT request.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eclosion-dev/ifttt-core/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type ctxKey string

// SubdomainKey is the request-context key populated by Middleware.
const SubdomainKey ctxKey = "subdomain"

// Issuer is the fixed iss claim on every token this service mints.
const Issuer = "eclosion-ifttt"

var (
	// ErrMissingBearer means no Authorization: Bearer header was sent.
	ErrMissingBearer = errors.New("missing bearer token")
	// ErrInvalidBearer means the token failed to parse or its signature
	// did not verify.
	ErrInvalidBearer = errors.New("invalid bearer token")
	// ErrDisconnected means the signature verified but the tenant is no
	// longer connected.
	ErrDisconnected = errors.New("tenant disconnected")
)

// claims is the exact wire shape: {sub, iss, iat}. There is deliberately
// no exp: tokens never expire by themselves. Revocation is carried
// entirely by IftttUser.connected, checked on every request.
type claims struct {
	jwt.RegisteredClaims
}

// Mint signs a bearer token for subdomain. iat is set to now; the token
// never expires.
func Mint(hmacSecret, subdomain string) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subdomain,
			Issuer:   Issuer,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString([]byte(hmacSecret))
}

// Verify parses and validates a bearer token's signature, returning its
// subject (subdomain). It does not consult connection state; callers
// needing the disconnect check should use Middleware or call
// ConnectedChecker themselves.
func Verify(hmacSecret, tokenString string) (subdomain string, err error) {
	if tokenString == "" {
		return "", ErrMissingBearer
	}

	var c claims
	_, err = jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(hmacSecret), nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBearer, err)
	}
	if c.Issuer != Issuer || c.Subject == "" {
		return "", ErrInvalidBearer
	}

	return c.Subject, nil
}

// ConnectedChecker reports whether a tenant is currently connected.
// store.GlobalStore satisfies this directly.
type ConnectedChecker interface {
	GetConnected(ctx context.Context, subdomain string) (store.IftttUser, error)
}

// Middleware validates the Authorization: Bearer header on every
// dispatcher request, rejects it if the signature does not verify or
// the tenant has disconnected, and stores the resolved subdomain in the
// request context.
func Middleware(hmacSecret string, checker ConnectedChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			tok := ""
			if strings.HasPrefix(h, "Bearer ") {
				tok = strings.TrimPrefix(h, "Bearer ")
			}

			subdomain, err := Verify(hmacSecret, tok)
			if err != nil {
				log.Debug().Err(err).Msg("bearer token rejected")
				writeUnauthorized(w)
				return
			}

			user, err := checker.GetConnected(r.Context(), subdomain)
			if err != nil {
				log.Error().Err(err).Str("subdomain", subdomain).Msg("failed to resolve connection state")
				writeUnauthorized(w)
				return
			}
			if !user.Connected {
				log.Debug().Str("subdomain", subdomain).Msg("bearer token rejected: disconnected")
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), SubdomainKey, subdomain)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"errors":[{"message":"invalid or expired access token"}]}`))
}

// Subdomain extracts the authenticated tenant subdomain from request
// context. Empty string means Middleware did not run or rejected the
// request before this point.
func Subdomain(ctx context.Context) string {
	if s, ok := ctx.Value(SubdomainKey).(string); ok {
		return s
	}
	return ""
}
