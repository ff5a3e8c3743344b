package multisig

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/twitchtv/twirp"
	"github.com/yiplee/go-cache"
	"golang.org/x/sync/singleflight"
)

func extractBearerToken(r *http.Request) string {
	token := r.Header.Get("Authorization")
	return strings.TrimPrefix(token, "Bearer ")
}

// NewToken signs a bearer token that authenticates addr.
func NewToken(cfg Config, addr Address, ttl time.Duration) (string, error) {
	now := time.Now()
	claim := jwt.StandardClaims{
		Issuer:    cfg.Issuer,
		Subject:   addr.String(),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claim).SignedString(cfg.Secret)
}

func parseToken(token, issuer string, secret []byte) (*User, error) {
	var claim jwt.StandardClaims
	if _, err := jwt.ParseWithClaims(token, &claim, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}

		return secret, nil
	}); err != nil {
		return nil, err
	}

	if !claim.VerifyIssuer(issuer, true) {
		return nil, fmt.Errorf("unexpected issuer %q", claim.Issuer)
	}

	addr, err := HexToAddress(claim.Subject)
	if err != nil {
		return nil, fmt.Errorf("subject: %w", err)
	}

	return &User{
		Address:   addr,
		ExpiresAt: time.Unix(claim.ExpiresAt, 0),
	}, nil
}

// handleAuth attaches the caller of a valid bearer token to the request
// context. Requests without a token pass through anonymously.
func handleAuth(issuer string, secret []byte) func(next http.Handler) http.Handler {
	var (
		users = cache.New[string, *User]()
		sf    singleflight.Group
	)

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := extractBearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err, _ := sf.Do(token, func() (interface{}, error) {
				if u, ok := users.Get(token); ok && time.Now().Before(u.ExpiresAt) {
					return u, nil
				}

				u, err := parseToken(token, issuer, secret)
				if err != nil {
					return nil, err
				}

				users.Set(token, u)
				return u, nil
			})

			if err != nil {
				_ = twirp.WriteError(w, twirp.Unauthenticated.Error(err.Error()))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(ctx, user.(*User))))
		}

		return http.HandlerFunc(fn)
	}
}
