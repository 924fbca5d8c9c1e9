// Package identity resolves the caller's session at the HTTP edge. Core
// services never look sessions up themselves; handlers pass the resolved
// ids down explicitly.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the account type a user signed up as.
type Role string

const (
	RolePatient  Role = "PATIENT"
	RoleProvider Role = "HEALTHCARE_PROVIDER"
	RoleCenter   Role = "HEALTHCARE_CENTER"
	RoleAdmin    Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleProvider, RoleCenter, RoleAdmin:
		return true
	}
	return false
}

// Session is the authenticated caller.
type Session struct {
	UserID uuid.UUID
	Role   Role
}

// Claims is the JWT payload. The subject carries the user id.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

var (
	ErrMissingToken = errors.New("identity: missing token")
	ErrInvalidToken = errors.New("identity: invalid token")
)

type ctxKey string

const sessionKey ctxKey = "careconnect.session"

// WithSession stores the session in ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// FromContext extracts the session if present.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok && s.UserID != uuid.Nil
}

// Issue signs an HS256 token for the session.
func Issue(secret string, s Session, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("identity: signing secret required")
	}
	now := time.Now()
	claims := Claims{
		Role: s.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Parse validates tokenString and returns the session it carries.
func Parse(secret, tokenString string) (Session, error) {
	if tokenString == "" {
		return Session{}, ErrMissingToken
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Session{}, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || !claims.Role.Valid() {
		return Session{}, ErrInvalidToken
	}
	return Session{UserID: userID, Role: claims.Role}, nil
}
