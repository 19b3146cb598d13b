package access

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenCookie is the cookie the CMS admin stores its session token in.
const TokenCookie = "payload-token"

var ErrNoToken = errors.New("no session token")

// Claims is the payload of a CMS session token.
type Claims struct {
	UserID     any    `json:"id"`
	Email      string `json:"email,omitempty"`
	Collection string `json:"collection,omitempty"`
	Role       Role   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 session tokens signed with the CMS secret.
type Verifier struct {
	key []byte
}

// NewVerifier derives the signing key the way the CMS does: the first 32 hex
// characters of the SHA-256 of the configured secret.
func NewVerifier(secret string) *Verifier {
	sum := sha256.Sum256([]byte(secret))
	return &Verifier{key: []byte(hex.EncodeToString(sum[:])[:32])}
}

// Sign issues a token for u. The CMS issues tokens in production; Sign
// exists for tooling and tests.
func (v *Verifier) Sign(u User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:     u.ID,
		Email:      u.Email,
		Collection: u.Collection,
		Role:       u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

// Verify parses and validates a token and returns its user.
func (v *Verifier) Verify(token string) (*User, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("verify token: invalid claims")
	}
	return &User{
		ID:         idString(claims.UserID),
		Email:      claims.Email,
		Collection: claims.Collection,
		Role:       claims.Role,
	}, nil
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// TokenFromRequest reads the session token from an "Authorization: JWT ..."
// or "Bearer ..." header, falling back to the admin cookie.
func TokenFromRequest(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	for _, scheme := range []string{"JWT ", "Bearer "} {
		if strings.HasPrefix(auth, scheme) {
			return strings.TrimSpace(strings.TrimPrefix(auth, scheme)), nil
		}
	}
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", ErrNoToken
}

type userKey struct{}

// WithUser returns ctx carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the user stored by Middleware, or nil.
func UserFrom(ctx context.Context) *User {
	u, _ := ctx.Value(userKey{}).(*User)
	return u
}

// Middleware authenticates the request and applies rule to the user.
func Middleware(v *Verifier, rule Rule, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := TokenFromRequest(r)
			if err != nil {
				http.Error(w, `{"error":"missing session token"}`, http.StatusUnauthorized)
				return
			}
			u, err := v.Verify(token)
			if err != nil {
				log.Warn("rejected session token", "path", r.URL.Path, "error", err)
				http.Error(w, `{"error":"invalid session token"}`, http.StatusUnauthorized)
				return
			}
			if !rule(u) {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}
