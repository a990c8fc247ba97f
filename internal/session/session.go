package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Domain errors
var (
	ErrSessionExpired = errors.New("session expired")
	ErrSessionInvalid = errors.New("session invalid")
)

// Session is the verified content of a session credential.
type Session struct {
	ID             string
	UserID         string
	OrganizationID string
	ExpiresAt      time.Time
}

// Claims is the JWT payload of a session cookie. Subject is the user id and
// ID (jti) the session handle.
type Claims struct {
	OrganizationID string `json:"org_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTResolver verifies HS256 session cookies issued by the login service.
type JWTResolver struct {
	key    []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewJWTResolver creates a resolver for cookies signed with key by issuer.
func NewJWTResolver(key []byte, issuer string) *JWTResolver {
	return &JWTResolver{
		key:    key,
		issuer: issuer,
		leeway: 30 * time.Second,
		now:    time.Now,
	}
}

// Resolve verifies the signature, issuer and expiry of credential.
func (r *JWTResolver) Resolve(_ context.Context, credential string) (*Session, error) {
	if credential == "" {
		return nil, ErrSessionInvalid
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (any, error) {
		return r.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(r.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(r.leeway),
		jwt.WithTimeFunc(r.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing subject or id", ErrSessionInvalid)
	}

	return &Session{
		ID:             claims.ID,
		UserID:         claims.Subject,
		OrganizationID: claims.OrganizationID,
		ExpiresAt:      claims.ExpiresAt.Time,
	}, nil
}

// Sign produces a cookie value for s. Used by local tooling and tests; the
// login service signs production cookies.
func (r *JWTResolver) Sign(s *Session) (string, error) {
	claims := Claims{
		OrganizationID: s.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   s.UserID,
			Issuer:    r.issuer,
			IssuedAt:  jwt.NewNumericDate(r.now()),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.key)
}
