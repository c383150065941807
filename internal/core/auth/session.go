package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role names the two access levels the product distinguishes.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var (
	ErrEmptyToken   = errors.New("auth: empty token")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrNoSession    = errors.New("auth: no session in context")
)

// Session is the explicit per-request identity. It is created by the auth
// middleware from the bearer token and carried in the request context; there
// is no ambient global holding the current user.
type Session struct {
	UserID uuid.UUID
	Role   Role
}

// Claims is the JWT payload this service issues and accepts.
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// ParseToken validates an HS256 token and builds the session.
func ParseToken(tokenString string, secret []byte) (*Session, error) {
	if tokenString == "" {
		return nil, ErrEmptyToken
	}
	if len(secret) == 0 {
		return nil, errors.New("auth: empty secret")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		return nil, errors.Join(ErrInvalidToken, errors.New("auth: token expired"))
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, errors.New("auth: missing or malformed userId claim"))
	}

	role := Role(claims.Role)
	if role != RoleAdmin {
		role = RoleUser
	}

	return &Session{UserID: userID, Role: role}, nil
}

type contextKey struct{}

// WithSession attaches the session to the context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// SessionFrom extracts the session placed by the auth middleware.
func SessionFrom(ctx context.Context) (*Session, error) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	if !ok || s == nil {
		return nil, ErrNoSession
	}
	return s, nil
}
