package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

// Roles known to the booking API.
const (
	RoleCustomer = "customer"
	RoleMechanic = "mechanic"
	RoleAdmin    = "admin"
)

var (
	// ErrUnauthenticated is returned when the request carries no usable identity.
	ErrUnauthenticated = errors.New("auth: unauthenticated")
)

// Principal is the authenticated caller.
type Principal struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

// Is reports whether the principal has role or is an admin.
func (p Principal) Is(role string) bool {
	return p.Role == role || p.Role == RoleAdmin
}

// Authenticator extracts the caller from a request.
type Authenticator interface {
	Authenticate(r *http.Request) (Principal, error)
}

// Claims are the JWT claims issued for booking clients.
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.StandardClaims
}

// Manager issues and parses HS256 tokens.
type Manager struct {
	signingKey string
}

func NewManager(signingKey string) (*Manager, error) {
	if signingKey == "" {
		return nil, errors.New("empty signing key")
	}
	return &Manager{signingKey: signingKey}, nil
}

func (m *Manager) NewJWT(p Principal, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: p.UserID,
		Role:   p.Role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(ttl).Unix(),
			Subject:   strconv.FormatInt(p.UserID, 10),
		},
	})
	return token.SignedString([]byte(m.signingKey))
}

func (m *Manager) Parse(accessToken string) (Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.signingKey), nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !token.Valid || claims.UserID <= 0 {
		return Principal{}, ErrUnauthenticated
	}
	return Principal{UserID: claims.UserID, Role: claims.Role}, nil
}

// Authenticate reads a Bearer token from the Authorization header.
func (m *Manager) Authenticate(r *http.Request) (Principal, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return Principal{}, ErrUnauthenticated
	}
	return m.Parse(strings.TrimPrefix(authHeader, "Bearer "))
}

// HeaderAuthenticator trusts X-User-ID and X-User-Role. Only for the mock backend.
type HeaderAuthenticator struct{}

func (HeaderAuthenticator) Authenticate(r *http.Request) (Principal, error) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	if err != nil || id <= 0 {
		return Principal{}, ErrUnauthenticated
	}
	role := r.Header.Get("X-User-Role")
	if role == "" {
		role = RoleCustomer
	}
	return Principal{UserID: id, Role: role}, nil
}

type ctxKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
